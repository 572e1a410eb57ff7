package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mpetrenko/taskmanager/internal/models"
	"github.com/mpetrenko/taskmanager/internal/tasks"
)

// ownerTasks is the shared read path of the aggregation endpoints: one
// snapshot of the owner's task set per request.
func (h *Handler) ownerTasks(w http.ResponseWriter, r *http.Request) ([]*models.Task, string, bool) {
	userID, _ := r.Context().Value("user_id").(string)
	if userID == "" {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return nil, "", false
	}
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, "", false
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	all, err := h.TaskRepo.ListByOwner(ctx, userID)
	if err != nil {
		log.Printf("Failed to load tasks for %s: %v", userID, err)
		sendError(w, "Failed to load tasks", http.StatusInternalServerError)
		return nil, "", false
	}
	return all, userID, true
}

/*
GET /tasks/summary - all-time counts
GET /tasks/summary?period=total|week|month&year=&week=&month= - completion
rate over the tasks due in the period
*/
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	all, _, ok := h.ownerTasks(w, r)
	if !ok {
		return
	}
	now := h.now()

	q := r.URL.Query()
	periodParam := q.Get("period")
	if periodParam == "" {
		sendJSON(w, http.StatusOK, tasks.Summarize(all, now))
		return
	}

	kind := tasks.PeriodKind(periodParam)
	isoYear, isoWeek := now.ISOWeek()
	period := tasks.Period{Kind: kind, Year: now.Year(), Week: isoWeek, Month: now.Month()}
	if kind == tasks.PeriodWeek {
		period.Year = isoYear
	}

	var err error
	if y := q.Get("year"); y != "" {
		if period.Year, err = strconv.Atoi(y); err != nil {
			sendError(w, "year must be a number", http.StatusBadRequest)
			return
		}
	}
	if wk := q.Get("week"); wk != "" {
		if period.Week, err = strconv.Atoi(wk); err != nil {
			sendError(w, "week must be a number", http.StatusBadRequest)
			return
		}
	}
	if m := q.Get("month"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			sendError(w, "month must be a number", http.StatusBadRequest)
			return
		}
		period.Month = time.Month(n)
	}

	summary, err := tasks.SummarizePeriod(all, period, now)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sendJSON(w, http.StatusOK, summary)
}

// GET /tasks/analytics
func (h *Handler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	all, _, ok := h.ownerTasks(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, tasks.Analyze(all, h.now()))
}

// GET /tasks/calendar?year=&month= (defaults to the current month)
func (h *Handler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	all, _, ok := h.ownerTasks(w, r)
	if !ok {
		return
	}
	now := h.now()

	year, month := now.Year(), now.Month()
	q := r.URL.Query()
	if y := q.Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			sendError(w, "year must be a number", http.StatusBadRequest)
			return
		}
		year = n
	}
	if m := q.Get("month"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > 12 {
			sendError(w, "month must be a number between 1 and 12", http.StatusBadRequest)
			return
		}
		month = time.Month(n)
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"year":  year,
		"month": int(month),
		"days":  tasks.CalendarView(all, year, month),
	})
}

// GET /tasks/digest
func (h *Handler) HandleDigest(w http.ResponseWriter, r *http.Request) {
	all, _, ok := h.ownerTasks(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, tasks.DailyDigest(all, h.now()))
}
