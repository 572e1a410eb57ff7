package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mpetrenko/taskmanager/internal/models"
)

type taskJSON struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
}

func createTaskHTTP(t *testing.T, mux *http.ServeMux, authz, body string) taskJSON {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewBufferString(body))
	req.Header.Set("Authorization", authz)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /tasks status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created taskJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created task: %v", err)
	}
	return created
}

func TestTasks_CRUD_HappyPath(t *testing.T) {
	_, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	userID := uuid.New().String()
	authz := bearerForUser(t, secret, userID)

	// create with only a title: defaults apply
	created := createTaskHTTP(t, mux, authz, `{"title":"Write report"}`)
	if created.Status != "pending" || created.Priority != "medium" || created.DueDate != nil {
		t.Fatalf("defaults not applied: %+v", created)
	}

	// list
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", authz)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /tasks status=%d body=%s", rec.Code, rec.Body.String())
	}
	var listed []taskJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].Title != "Write report" {
		t.Fatalf("unexpected list: %+v", listed)
	}

	// partial update
	patch := `{"status":"completed","priority":"high"}`
	req2 := httptest.NewRequest(http.MethodPatch, "/tasks/"+created.ID, bytes.NewBufferString(patch))
	req2.Header.Set("Authorization", authz)
	req2.Header.Set("Content-Type", "application/json")
	rec2 := httptest.NewRecorder()
	mux.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("PATCH /tasks/{id} status=%d body=%s", rec2.Code, rec2.Body.String())
	}
	var updated taskJSON
	if err := json.Unmarshal(rec2.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated task: %v", err)
	}
	if updated.Status != "completed" || updated.Priority != "high" || updated.Title != "Write report" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	// delete
	req3 := httptest.NewRequest(http.MethodDelete, "/tasks/"+created.ID, nil)
	req3.Header.Set("Authorization", authz)
	rec3 := httptest.NewRecorder()
	mux.ServeHTTP(rec3, req3)
	if rec3.Code != http.StatusNoContent {
		t.Fatalf("DELETE /tasks/{id} status=%d", rec3.Code)
	}

	req4 := httptest.NewRequest(http.MethodGet, "/tasks/"+created.ID, nil)
	req4.Header.Set("Authorization", authz)
	rec4 := httptest.NewRecorder()
	mux.ServeHTTP(rec4, req4)
	if rec4.Code != http.StatusNotFound {
		t.Fatalf("GET after delete status=%d, want 404", rec4.Code)
	}
}

// PUT is a full replace: the payload must be complete and omitted fields
// reset to their defaults, unlike the partial PATCH
func TestTask_Put_ReplacesWholeTask(t *testing.T) {
	_, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	authz := bearerForUser(t, secret, uuid.New().String())
	created := createTaskHTTP(t, mux, authz,
		`{"title":"Write report","description":"long one","priority":"high"}`)

	// PUT without a title is rejected
	req := httptest.NewRequest(http.MethodPut, "/tasks/"+created.ID,
		bytes.NewBufferString(`{"priority":"low"}`))
	req.Header.Set("Authorization", authz)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("PUT without title: status=%d, want 400", rec.Code)
	}

	// a complete PUT resets everything it omits
	req = httptest.NewRequest(http.MethodPut, "/tasks/"+created.ID,
		bytes.NewBufferString(`{"title":"Rewritten"}`))
	req.Header.Set("Authorization", authz)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var replaced taskJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &replaced); err != nil {
		t.Fatalf("decode replaced task: %v", err)
	}
	if replaced.ID != created.ID {
		t.Errorf("id changed on PUT: %q -> %q", created.ID, replaced.ID)
	}
	if replaced.Title != "Rewritten" || replaced.Description != "" ||
		replaced.Status != "pending" || replaced.Priority != "medium" {
		t.Errorf("replace result: %+v", replaced)
	}
}

func TestTasks_Create_ValidationErrors(t *testing.T) {
	_, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	authz := bearerForUser(t, secret, uuid.New().String())

	body := fmt.Sprintf(`{"title":"ab","status":"done","due_date":%q}`,
		handlerNow.Add(-24*time.Hour).Format(time.RFC3339))
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewBufferString(body))
	req.Header.Set("Authorization", authz)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400; body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	// all failing fields reported together
	for _, field := range []string{"title", "status", "due_date"} {
		if _, ok := resp.Fields[field]; !ok {
			t.Errorf("missing field error %q in %v", field, resp.Fields)
		}
	}
}

func TestTasks_ListFilters(t *testing.T) {
	h, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	owner := uuid.New()
	authz := bearerForUser(t, secret, owner.String())

	// overdue tasks go straight into the store: the validator rejects past
	// due dates on the API
	overdueDue := handlerNow.Add(-2 * time.Hour)
	soonDue := handlerNow.Add(24 * time.Hour)
	seed := []*models.Task{
		{ID: uuid.New(), OwnerID: owner, Title: "overdue one", Status: models.TaskStatusPending,
			Priority: models.TaskPriorityHigh, DueDate: &overdueDue, CreatedAt: handlerNow, UpdatedAt: handlerNow},
		{ID: uuid.New(), OwnerID: owner, Title: "upcoming one", Status: models.TaskStatusPending,
			Priority: models.TaskPriorityLow, DueDate: &soonDue, CreatedAt: handlerNow, UpdatedAt: handlerNow},
		{ID: uuid.New(), OwnerID: owner, Title: "finished", Status: models.TaskStatusCompleted,
			Priority: models.TaskPriorityHigh, DueDate: &overdueDue, CreatedAt: handlerNow, UpdatedAt: handlerNow},
	}
	for _, task := range seed {
		if err := h.TaskRepo.Create(context.Background(), task); err != nil {
			t.Fatalf("seed %s: %v", task.Title, err)
		}
	}

	list := func(query string) []taskJSON {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/tasks"+query, nil)
		req.Header.Set("Authorization", authz)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /tasks%s status=%d body=%s", query, rec.Code, rec.Body.String())
		}
		var got []taskJSON
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		return got
	}

	if got := list("?overdue=true"); len(got) != 1 || got[0].Title != "overdue one" {
		t.Errorf("overdue filter: %+v", got)
	}
	if got := list("?upcoming=true"); len(got) != 1 || got[0].Title != "upcoming one" {
		t.Errorf("upcoming filter: %+v", got)
	}
	if got := list("?status=completed"); len(got) != 1 || got[0].Title != "finished" {
		t.Errorf("status filter: %+v", got)
	}
	if got := list("?priority=high"); len(got) != 2 {
		t.Errorf("priority filter: %+v", got)
	}
	if got := list("?priority=high&status=pending"); len(got) != 1 || got[0].Title != "overdue one" {
		t.Errorf("combined filter: %+v", got)
	}

	// bad enum values are rejected at the boundary
	req := httptest.NewRequest(http.MethodGet, "/tasks?status=archived", nil)
	req.Header.Set("Authorization", authz)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: status=%d, want 400", rec.Code)
	}
}

func TestTasks_ForbiddenForNonOwner(t *testing.T) {
	_, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	ownerAuthz := bearerForUser(t, secret, uuid.New().String())
	strangerAuthz := bearerForUser(t, secret, uuid.New().String())

	created := createTaskHTTP(t, mux, ownerAuthz, `{"title":"private task"}`)

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		req := httptest.NewRequest(method, "/tasks/"+created.ID, nil)
		if method == http.MethodPatch {
			req = httptest.NewRequest(method, "/tasks/"+created.ID, bytes.NewBufferString(`{"title":"stolen"}`))
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", strangerAuthz)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s by stranger: status=%d, want 403", method, rec.Code)
		}
	}
}

type failingTaskRepo struct{}

func (failingTaskRepo) Create(context.Context, *models.Task) error { return errors.New("store down") }
func (failingTaskRepo) GetByID(context.Context, string) (*models.Task, error) {
	return nil, errors.New("store down")
}
func (failingTaskRepo) Update(context.Context, *models.Task) error { return errors.New("store down") }
func (failingTaskRepo) Delete(context.Context, string) error       { return errors.New("store down") }
func (failingTaskRepo) ListByOwner(context.Context, string) ([]*models.Task, error) {
	return nil, errors.New("store down")
}

// a store failure is a 500, not a 404: only a missing row is "not found"
func TestTask_ByID_StoreFailureIsNot404(t *testing.T) {
	h, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()
	h.TaskRepo = failingTaskRepo{}

	authz := bearerForUser(t, secret, uuid.New().String())
	req := httptest.NewRequest(http.MethodGet, "/tasks/"+uuid.New().String(), nil)
	req.Header.Set("Authorization", authz)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("GET with broken store: status=%d, want 500", rec.Code)
	}
}

func TestTasks_DefaultPriorityFromPreferences(t *testing.T) {
	h, mux, dbx, secret := setupHTTP(t)
	defer dbx.Close()

	owner := uuid.New()
	authz := bearerForUser(t, secret, owner.String())

	prefs, err := h.PrefsRepo.GetOrCreate(context.Background(), owner, handlerNow)
	if err != nil {
		t.Fatalf("prefs: %v", err)
	}
	prefs.DefaultPriority = models.TaskPriorityHigh
	prefs.UpdatedAt = handlerNow
	if err := h.PrefsRepo.Update(context.Background(), prefs); err != nil {
		t.Fatalf("update prefs: %v", err)
	}

	created := createTaskHTTP(t, mux, authz, `{"title":"uses my default"}`)
	if created.Priority != "high" {
		t.Errorf("priority = %q, want high from preferences", created.Priority)
	}

	explicit := createTaskHTTP(t, mux, authz, `{"title":"explicit wins","priority":"low"}`)
	if explicit.Priority != "low" {
		t.Errorf("priority = %q, want low", explicit.Priority)
	}
}
