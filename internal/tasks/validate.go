package tasks

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/mpetrenko/taskmanager/internal/models"
)

const (
	titleMinLen       = 3
	titleMaxLen       = 255
	descriptionMaxLen = 5000
	// furthest allowed due date, counted from "now"
	maxDueDateHorizon = 3650 * 24 * time.Hour
)

// Payload is a task create/update request after JSON decoding. Nil fields
// were absent from the request; on update they leave the stored value alone.
type Payload struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`

	// DefaultPriority comes from the owner's preferences, not the request;
	// it replaces the built-in medium default on create when valid.
	DefaultPriority models.TaskPriority `json:"-"`
}

// Validate checks a payload against an optional existing task and returns the
// normalized result: a fresh task with defaults applied on create (existing ==
// nil), or a copy of existing with the provided fields replaced on update.
// It never touches ID, OwnerID or the timestamps; those belong to the caller.
// All field failures are collected into a single ValidationError.
func Validate(p Payload, existing *models.Task, now time.Time) (*models.Task, *ValidationError) {
	verr := newValidationError()

	var out models.Task
	if existing != nil {
		out = *existing
	}

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		// limits count characters, not bytes
		switch {
		case title == "":
			verr.add("title", "title cannot be empty")
		case utf8.RuneCountInString(title) < titleMinLen:
			verr.add("title", "title must be at least 3 characters")
		case utf8.RuneCountInString(title) > titleMaxLen:
			verr.add("title", "title must be at most 255 characters")
		case !containsAlphanumeric(title):
			verr.add("title", "title must contain at least one letter or digit")
		default:
			out.Title = title
		}
	} else if existing == nil {
		verr.add("title", "title is required")
	}

	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		if utf8.RuneCountInString(desc) > descriptionMaxLen {
			verr.add("description", "description must be at most 5000 characters")
		} else {
			out.Description = desc
		}
	}

	if p.Status != nil {
		status := models.TaskStatus(strings.ToLower(strings.TrimSpace(*p.Status)))
		if !status.Valid() {
			verr.add("status", "status must be one of: pending, completed")
		} else {
			out.Status = status
		}
	} else if existing == nil {
		out.Status = models.TaskStatusPending
	}

	if p.Priority != nil {
		priority := models.TaskPriority(strings.ToLower(strings.TrimSpace(*p.Priority)))
		if !priority.Valid() {
			verr.add("priority", "priority must be one of: low, medium, high")
		} else {
			out.Priority = priority
		}
	} else if existing == nil {
		if p.DefaultPriority.Valid() {
			out.Priority = p.DefaultPriority
		} else {
			out.Priority = models.TaskPriorityMedium
		}
	}

	if p.DueDate != nil {
		due := p.DueDate.UTC()
		switch {
		case due.Before(now):
			verr.add("due_date", "due date cannot be in the past")
		case due.After(now.Add(maxDueDateHorizon)):
			verr.add("due_date", "due date cannot be more than 10 years in the future")
		default:
			out.DueDate = &due
		}
	}

	// A task cannot be completed without a title. Only reachable on update
	// paths where the title check above did not already fail.
	if out.Status == models.TaskStatusCompleted && out.Title == "" {
		verr.add("title", "a completed task must have a title")
	}

	if !verr.empty() {
		return nil, verr
	}
	return &out, nil
}

func containsAlphanumeric(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
