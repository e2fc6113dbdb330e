package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/models"
)

type UserRepository struct {
	db *database.DB
}

// ErrUserNotFound is returned when no user row exists for an id.
var ErrUserNotFound = errors.New("user not found")

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the user or refreshes the last known username.
func (r *UserRepository) Upsert(ctx context.Context, userID int64, username string) error {
	user := models.User{ID: userID, Username: username}
	if err := user.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	query := `
		INSERT INTO users (id, username, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET username = excluded.username, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), userID, username, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.GetContext(ctx, user, r.db.Rebind(`SELECT id, username, updated_at FROM users WHERE id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
