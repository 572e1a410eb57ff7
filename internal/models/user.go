package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// UserPreferences holds per-user settings; one row per user, created lazily
// on first access and removed together with the account.
type UserPreferences struct {
	UserID             uuid.UUID    `json:"-"`
	ProfileImage       string       `json:"-"`
	EmailNotifications bool         `json:"email_notifications"`
	TaskReminders      bool         `json:"task_reminders"`
	DailySummary       bool         `json:"daily_summary"`
	DarkMode           bool         `json:"dark_mode"`
	DefaultPriority    TaskPriority `json:"default_priority"`
	CreatedAt          time.Time    `json:"-"`
	UpdatedAt          time.Time    `json:"-"`
}

// DefaultPreferences mirrors the defaults applied when a user registers.
func DefaultPreferences(userID uuid.UUID, now time.Time) *UserPreferences {
	return &UserPreferences{
		UserID:          userID,
		TaskReminders:   true,
		DefaultPriority: TaskPriorityMedium,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
