package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mpetrenko/taskmanager/internal/models"
)

// defines methods for user preferences db operations
type PreferencesRepositoryInterface interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, now time.Time) (*models.UserPreferences, error)
	Update(ctx context.Context, prefs *models.UserPreferences) error
	Create(ctx context.Context, prefs *models.UserPreferences) error
}

type PreferencesRepository struct {
	db *sql.DB
}

func NewPreferencesRepository(db *sql.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

const prefsColumns = `user_id, profile_image, email_notifications, task_reminders,
 daily_summary, dark_mode, default_priority, created_at, updated_at`

func (r *PreferencesRepository) Create(ctx context.Context, prefs *models.UserPreferences) error {
	query := `INSERT INTO user_preferences (` + prefsColumns + `)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(
		ctx, query, prefs.UserID, prefs.ProfileImage, prefs.EmailNotifications,
		prefs.TaskReminders, prefs.DailySummary, prefs.DarkMode,
		prefs.DefaultPriority, prefs.CreatedAt, prefs.UpdatedAt)
	return err
}

// GetOrCreate returns the user's preferences row, inserting the defaults
// first if the user has none yet.
func (r *PreferencesRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, now time.Time) (*models.UserPreferences, error) {
	prefs, err := r.get(ctx, userID)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	prefs = models.DefaultPreferences(userID, now)
	if err := r.Create(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (r *PreferencesRepository) Update(ctx context.Context, prefs *models.UserPreferences) error {
	query := `UPDATE user_preferences SET profile_image = $1, email_notifications = $2,
	 task_reminders = $3, daily_summary = $4, dark_mode = $5, default_priority = $6,
	 updated_at = $7 WHERE user_id = $8`
	res, err := r.db.ExecContext(
		ctx, query, prefs.ProfileImage, prefs.EmailNotifications, prefs.TaskReminders,
		prefs.DailySummary, prefs.DarkMode, prefs.DefaultPriority,
		prefs.UpdatedAt, prefs.UserID)
	if err != nil {
		return err
	}
	return requireRow(res, "preferences for user", prefs.UserID.String())
}

func (r *PreferencesRepository) get(ctx context.Context, userID uuid.UUID) (*models.UserPreferences, error) {
	query := `SELECT ` + prefsColumns + ` FROM user_preferences WHERE user_id = $1`
	prefs := &models.UserPreferences{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&prefs.UserID, &prefs.ProfileImage, &prefs.EmailNotifications,
		&prefs.TaskReminders, &prefs.DailySummary, &prefs.DarkMode,
		&prefs.DefaultPriority, &prefs.CreatedAt, &prefs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return prefs, nil
}
