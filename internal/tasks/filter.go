package tasks

import (
	"sort"
	"time"

	"github.com/mpetrenko/taskmanager/internal/models"
)

// window for the upcoming filter
const upcomingWindow = 7 * 24 * time.Hour

// FilterOptions is the typed form of the list query parameters. Zero values
// mean the filter is not applied; set filters combine with logical AND.
type FilterOptions struct {
	Status   models.TaskStatus
	Priority models.TaskPriority
	// DueOn matches on the calendar date of due_date, not the full timestamp.
	DueOn    *time.Time
	Overdue  bool
	Upcoming bool
	// SortByDueDate orders ascending by due date (calendar views) instead of
	// the default newest-created-first.
	SortByDueDate bool
}

// Filter reduces an owner's task set to the tasks matching opts, ordered per
// opts.SortByDueDate. The same now must be used for every filter in one
// request so overdue and upcoming stay disjoint.
func Filter(all []*models.Task, opts FilterOptions, now time.Time) []*models.Task {
	matched := make([]*models.Task, 0, len(all))
	for _, t := range all {
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		if opts.Priority != "" && t.Priority != opts.Priority {
			continue
		}
		if opts.DueOn != nil && (t.DueDate == nil || !sameDay(*t.DueDate, *opts.DueOn)) {
			continue
		}
		if opts.Overdue && !IsOverdue(t, now) {
			continue
		}
		if opts.Upcoming && !isUpcoming(t, now) {
			continue
		}
		matched = append(matched, t)
	}

	if opts.SortByDueDate {
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := matched[i].DueDate, matched[j].DueDate
			if a == nil || b == nil {
				return b == nil && a != nil
			}
			return a.Before(*b)
		})
	} else {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
	}
	return matched
}

// IsOverdue reports whether a pending task's due date has passed. Completed
// tasks are never overdue.
func IsOverdue(t *models.Task, now time.Time) bool {
	return t.Status == models.TaskStatusPending &&
		t.DueDate != nil && t.DueDate.Before(now)
}

func isUpcoming(t *models.Task, now time.Time) bool {
	if t.Status != models.TaskStatusPending || t.DueDate == nil {
		return false
	}
	due := *t.DueDate
	return !due.Before(now) && !due.After(now.Add(upcomingWindow))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
