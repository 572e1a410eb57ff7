package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mpetrenko/taskmanager/internal/models"
	"github.com/mpetrenko/taskmanager/internal/tasks"
)

/*
handles routes:
- GET /tasks - list the owner's tasks, with optional filters
- POST /tasks - create a new task
*/
func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTasks(w, r)
	case http.MethodPost:
		h.createTask(w, r)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("user_id").(string)
	if userID == "" {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	opts, err := parseFilterOptions(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	all, err := h.TaskRepo.ListByOwner(ctx, userID)
	if err != nil {
		log.Printf("Failed to list tasks for %s: %v", userID, err)
		sendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, tasks.Filter(all, opts, h.now()))
}

// parseFilterOptions coerces the raw query parameters into typed filter
// options, rejecting unknown enum values and malformed dates up front.
func parseFilterOptions(r *http.Request) (tasks.FilterOptions, error) {
	var opts tasks.FilterOptions
	q := r.URL.Query()

	if s := q.Get("status"); s != "" {
		status := models.TaskStatus(strings.ToLower(s))
		if !status.Valid() {
			return opts, errors.New("status must be one of: pending, completed")
		}
		opts.Status = status
	}
	if p := q.Get("priority"); p != "" {
		priority := models.TaskPriority(strings.ToLower(p))
		if !priority.Valid() {
			return opts, errors.New("priority must be one of: low, medium, high")
		}
		opts.Priority = priority
	}
	if d := q.Get("due_date"); d != "" {
		day, err := time.ParseInLocation("2006-01-02", d, time.UTC)
		if err != nil {
			return opts, errors.New("due_date must be a date in YYYY-MM-DD format")
		}
		opts.DueOn = &day
	}
	opts.Overdue = q.Get("overdue") == "true"
	opts.Upcoming = q.Get("upcoming") == "true"
	opts.SortByDueDate = q.Get("sort") == "due_date"
	return opts, nil
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.authedUser(w, r)
	if !ok {
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	var payload tasks.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := h.now()
	if prefs, err := h.PrefsRepo.GetOrCreate(ctx, ownerID, now); err == nil {
		payload.DefaultPriority = prefs.DefaultPriority
	}

	validated, verr := tasks.Validate(payload, nil, now)
	if verr != nil {
		sendValidationError(w, verr)
		return
	}

	task := validated
	task.ID = uuid.New()
	task.OwnerID = ownerID
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := h.TaskRepo.Create(ctx, task); err != nil {
		log.Printf("Failed to create task for %s: %v", ownerID, err)
		sendError(w, "Failed to create task", http.StatusInternalServerError)
		return
	}
	h.WSHub.BroadcastTaskEvent(task.OwnerID, "task_created", task)
	w.Header().Set("Location", "/tasks/"+task.ID.String())
	sendJSON(w, http.StatusCreated, task)
}

/*
routes:
- GET /tasks/{id},
- PUT/PATCH /tasks/{id},
- DELETE /tasks/{id}
*/
func (h *Handler) HandleTaskByID(w http.ResponseWriter, r *http.Request) {
	taskIDstr := strings.TrimPrefix(r.URL.Path, "/tasks/")
	if taskIDstr == "" {
		sendError(w, "task_id is required", http.StatusBadRequest)
		return
	}
	taskID, err := uuid.Parse(taskIDstr)
	if err != nil {
		sendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTaskByID(w, r, taskID)
	case http.MethodPut, http.MethodPatch:
		h.updateTaskByID(w, r, taskID)
	case http.MethodDelete:
		h.deleteTaskByID(w, r, taskID)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ownedTask loads a task and enforces that it belongs to the caller. A
// missing row is 404; a store failure is 500.
func (h *Handler) ownedTask(ctx context.Context, w http.ResponseWriter, userID string, taskID uuid.UUID) *models.Task {
	task, err := h.TaskRepo.GetByID(ctx, taskID.String())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Failed to load task %s: %v", taskID, err)
			sendError(w, "Failed to load task", http.StatusInternalServerError)
			return nil
		}
		sendError(w, "Task not found", http.StatusNotFound)
		return nil
	}
	if task.OwnerID.String() != userID {
		sendError(w, "Forbidden", http.StatusForbidden)
		return nil
	}
	return task
}

func (h *Handler) getTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, _ := r.Context().Value("user_id").(string)
	if userID == "" {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task := h.ownedTask(ctx, w, userID, taskID)
	if task == nil {
		return
	}
	sendJSON(w, http.StatusOK, task)
}

func (h *Handler) updateTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, _ := r.Context().Value("user_id").(string)
	if userID == "" {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	existing := h.ownedTask(ctx, w, userID, taskID)
	if existing == nil {
		return
	}

	var payload tasks.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	// PUT replaces the whole task: the payload must be complete and defaults
	// re-apply to omitted fields. PATCH keeps the stored values.
	base := existing
	if r.Method == http.MethodPut {
		base = nil
	}

	now := h.now()
	updated, verr := tasks.Validate(payload, base, now)
	if verr != nil {
		sendValidationError(w, verr)
		return
	}
	updated.ID = existing.ID
	updated.OwnerID = existing.OwnerID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = now

	if err := h.TaskRepo.Update(ctx, updated); err != nil {
		log.Printf("Failed to update task %s: %v", taskID, err)
		sendError(w, "Failed to update task", http.StatusInternalServerError)
		return
	}
	h.WSHub.BroadcastTaskEvent(updated.OwnerID, "task_updated", updated)
	sendJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, _ := r.Context().Value("user_id").(string)
	if userID == "" {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	existing := h.ownedTask(ctx, w, userID, taskID)
	if existing == nil {
		return
	}

	if err := h.TaskRepo.Delete(ctx, taskID.String()); err != nil {
		log.Printf("Failed to delete task %s: %v", taskID, err)
		sendError(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}
	h.WSHub.BroadcastTaskEvent(existing.OwnerID, "task_deleted", existing)
	w.WriteHeader(http.StatusNoContent)
}
