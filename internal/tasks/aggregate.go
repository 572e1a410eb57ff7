package tasks

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mpetrenko/taskmanager/internal/models"
)

// Summary holds the all-time task counts for one owner.
type Summary struct {
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	PendingTasks   int `json:"pending_tasks"`
	OverdueTasks   int `json:"overdue_tasks"`
}

// Summarize counts an owner's tasks as of now.
func Summarize(all []*models.Task, now time.Time) Summary {
	var s Summary
	for _, t := range all {
		s.TotalTasks++
		switch t.Status {
		case models.TaskStatusCompleted:
			s.CompletedTasks++
		case models.TaskStatusPending:
			s.PendingTasks++
		}
		if IsOverdue(t, now) {
			s.OverdueTasks++
		}
	}
	return s
}

type PeriodKind string

const (
	PeriodTotal PeriodKind = "total"
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

// Period is a bounded due-date window used for completion-rate reporting.
// Year/Week/Month are ignored for PeriodTotal.
type Period struct {
	Kind  PeriodKind
	Year  int
	Week  int // ISO-8601 week number, PeriodWeek only
	Month time.Month
}

// PeriodSummary reports the due-dated task counts inside one period. Only
// tasks with a due date at or before min(period end, now) are counted.
type PeriodSummary struct {
	Period         string  `json:"period"`
	StartDate      string  `json:"start_date,omitempty"`
	EndDate        string  `json:"end_date,omitempty"`
	TasksDue       int     `json:"tasks_due"`
	CompletedDue   int     `json:"completed_due"`
	PendingDue     int     `json:"pending_due"`
	CompletionRate float64 `json:"completion_rate"`
}

// SummarizePeriod reduces the task set to the tasks due inside the period and
// reports their counts plus a completion rate in percent, one decimal place.
func SummarizePeriod(all []*models.Task, p Period, now time.Time) (PeriodSummary, error) {
	start, end, err := p.bounds()
	if err != nil {
		return PeriodSummary{}, err
	}

	out := PeriodSummary{Period: string(p.Kind)}
	if p.Kind != PeriodTotal {
		out.StartDate = start.Format("2006-01-02")
		out.EndDate = end.Add(-time.Nanosecond).Format("2006-01-02")
	}

	for _, t := range all {
		if t.DueDate == nil {
			continue
		}
		due := *t.DueDate
		if due.After(now) || !due.Before(end) {
			continue
		}
		if p.Kind != PeriodTotal && due.Before(start) {
			continue
		}
		out.TasksDue++
		if t.Status == models.TaskStatusCompleted {
			out.CompletedDue++
		} else {
			out.PendingDue++
		}
	}

	if out.TasksDue > 0 {
		out.CompletionRate = round1(float64(out.CompletedDue) / float64(out.TasksDue) * 100)
	}
	return out, nil
}

// bounds returns the [start, end) window of the period. The end is exclusive:
// the first instant after the period.
func (p Period) bounds() (start, end time.Time, err error) {
	switch p.Kind {
	case PeriodTotal:
		// unbounded; due dates are clamped to now by the caller anyway
		return time.Time{}, maxTime(), nil
	case PeriodWeek:
		if p.Week < 1 || p.Week > 53 {
			return start, end, fmt.Errorf("week must be between 1 and 53, got %d", p.Week)
		}
		start = isoWeekStart(p.Year, p.Week)
		return start, start.AddDate(0, 0, 7), nil
	case PeriodMonth:
		if p.Month < time.January || p.Month > time.December {
			return start, end, fmt.Errorf("month must be between 1 and 12, got %d", p.Month)
		}
		start = time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), nil
	default:
		return start, end, fmt.Errorf("unknown period %q", p.Kind)
	}
}

// isoWeekStart returns the Monday starting ISO week (year, week): the Monday
// of the week containing Jan 4, shifted by week-1 weeks.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	daysSinceMonday := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -daysSinceMonday)
	return monday.AddDate(0, 0, (week-1)*7)
}

func maxTime() time.Time {
	return time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// DayActivity is one day of the trailing-week activity series.
type DayActivity struct {
	Date      string `json:"date"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

// Analytics is the owner's activity report as of one instant.
type Analytics struct {
	DailyActivity     []DayActivity  `json:"daily_activity"`
	PriorityBreakdown map[string]int `json:"priority_breakdown"`
	StatusBreakdown   map[string]int `json:"status_breakdown"`
	CompletionRate30d float64        `json:"completion_rate_30_days"`
	ProductivityScore int            `json:"productivity_score"`
}

// Analyze builds the activity report: per-day created/completed counts for the
// last 7 calendar days (oldest first, today included), priority and status
// histograms, a completion rate over tasks created in the last 30 days, and a
// productivity score of max(0, 100 - 10*overdue), 0 when there are no tasks.
// Completions are attributed to the day of the task's last update.
func Analyze(all []*models.Task, now time.Time) Analytics {
	a := Analytics{
		DailyActivity: make([]DayActivity, 7),
		PriorityBreakdown: map[string]int{
			string(models.TaskPriorityLow):    0,
			string(models.TaskPriorityMedium): 0,
			string(models.TaskPriorityHigh):   0,
		},
		StatusBreakdown: map[string]int{
			string(models.TaskStatusPending):   0,
			string(models.TaskStatusCompleted): 0,
		},
	}

	today := startOfDay(now)
	dayIndex := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		date := today.AddDate(0, 0, i-6).Format("2006-01-02")
		a.DailyActivity[i] = DayActivity{Date: date}
		dayIndex[date] = i
	}

	var overdue, recent, recentCompleted int
	monthAgo := now.AddDate(0, 0, -30)
	for _, t := range all {
		a.PriorityBreakdown[string(t.Priority)]++
		a.StatusBreakdown[string(t.Status)]++

		if i, ok := dayIndex[t.CreatedAt.UTC().Format("2006-01-02")]; ok {
			a.DailyActivity[i].Created++
		}
		if t.Status == models.TaskStatusCompleted {
			if i, ok := dayIndex[t.UpdatedAt.UTC().Format("2006-01-02")]; ok {
				a.DailyActivity[i].Completed++
			}
		}

		if IsOverdue(t, now) {
			overdue++
		}
		if !t.CreatedAt.Before(monthAgo) {
			recent++
			if t.Status == models.TaskStatusCompleted {
				recentCompleted++
			}
		}
	}

	if recent > 0 {
		a.CompletionRate30d = round1(float64(recentCompleted) / float64(recent) * 100)
	}
	if len(all) > 0 {
		if score := 100 - 10*overdue; score > 0 {
			a.ProductivityScore = score
		}
	}
	return a
}

// CalendarItem is the lightweight task shape used in calendar and digest
// responses.
type CalendarItem struct {
	ID       uuid.UUID           `json:"id"`
	Title    string              `json:"title"`
	Priority models.TaskPriority `json:"priority"`
	Status   models.TaskStatus   `json:"status"`
	DueDate  *time.Time          `json:"due_date"`
}

// CalendarView groups the tasks due in the given month by calendar date,
// ascending by due date within each day. Keys are ISO dates (YYYY-MM-DD).
func CalendarView(all []*models.Task, year int, month time.Month) map[string][]CalendarItem {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0) // handles December -> January

	inMonth := make([]*models.Task, 0)
	for _, t := range all {
		if t.DueDate == nil {
			continue
		}
		due := t.DueDate.UTC()
		if due.Before(first) || !due.Before(next) {
			continue
		}
		inMonth = append(inMonth, t)
	}
	ordered := Filter(inMonth, FilterOptions{SortByDueDate: true}, first)

	grouped := make(map[string][]CalendarItem)
	for _, t := range ordered {
		day := t.DueDate.UTC().Format("2006-01-02")
		grouped[day] = append(grouped[day], calendarItem(t))
	}
	return grouped
}

// digest list cap for the overdue section
const digestOverdueLimit = 5

// Digest is the owner's daily snapshot: what is due, what slipped, and what
// got done today.
type Digest struct {
	DueToday            []CalendarItem `json:"due_today"`
	DueTodayCount       int            `json:"due_today_count"`
	DueTomorrow         []CalendarItem `json:"due_tomorrow"`
	DueTomorrowCount    int            `json:"due_tomorrow_count"`
	Overdue             []CalendarItem `json:"overdue"`
	OverdueCount        int            `json:"overdue_count"`
	CompletedToday      []CalendarItem `json:"completed_today"`
	CompletedTodayCount int            `json:"completed_today_count"`
	TotalPending        int            `json:"total_pending"`
}

// DailyDigest computes the digest as of now. The overdue list is capped at 5
// items; its count still reflects the full set.
func DailyDigest(all []*models.Task, now time.Time) Digest {
	d := Digest{
		DueToday:       []CalendarItem{},
		DueTomorrow:    []CalendarItem{},
		Overdue:        []CalendarItem{},
		CompletedToday: []CalendarItem{},
	}
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	for _, t := range Filter(all, FilterOptions{SortByDueDate: true}, now) {
		pending := t.Status == models.TaskStatusPending
		if pending {
			d.TotalPending++
		}
		if pending && t.DueDate != nil {
			due := t.DueDate.UTC()
			switch {
			case due.Before(now):
				d.OverdueCount++
				if len(d.Overdue) < digestOverdueLimit {
					d.Overdue = append(d.Overdue, calendarItem(t))
				}
			case sameDay(due, today):
				d.DueTodayCount++
				d.DueToday = append(d.DueToday, calendarItem(t))
			case sameDay(due, tomorrow):
				d.DueTomorrowCount++
				d.DueTomorrow = append(d.DueTomorrow, calendarItem(t))
			}
		}
		if t.Status == models.TaskStatusCompleted && sameDay(t.UpdatedAt, today) {
			d.CompletedTodayCount++
			d.CompletedToday = append(d.CompletedToday, calendarItem(t))
		}
	}
	return d
}

func calendarItem(t *models.Task) CalendarItem {
	return CalendarItem{
		ID:       t.ID,
		Title:    t.Title,
		Priority: t.Priority,
		Status:   t.Status,
		DueDate:  t.DueDate,
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
