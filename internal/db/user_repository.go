package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mpetrenko/taskmanager/internal/models"
)

// defines methods for user db operations
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	DeleteCascade(ctx context.Context, id string) error
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, first_name, last_name, password_hash, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (` + userColumns + `)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(
		ctx, query, user.ID, user.Username, user.Email, user.FirstName,
		user.LastName, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET email = $1, first_name = $2, last_name = $3,
	 updated_at = $4 WHERE id = $5`
	res, err := r.db.ExecContext(
		ctx, query, user.Email, user.FirstName, user.LastName, user.UpdatedAt, user.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "user", user.ID.String())
}

// DeleteCascade removes the user together with all their tasks and
// preferences in a single transaction.
func (r *UserRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE owner_id = $1`, id); err != nil {
		return fmt.Errorf("delete tasks for user %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_preferences WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("delete preferences for user %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res, "user", id); err != nil {
		return err
	}
	return tx.Commit()
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FirstName,
		&user.LastName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
