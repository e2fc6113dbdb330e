package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/models"
)

type ModeratorRepository struct {
	db *database.DB
}

func NewModeratorRepository(db *database.DB) *ModeratorRepository {
	return &ModeratorRepository{db: db}
}

// GrantsByUser returns every grant held by the user, super grants first.
func (r *ModeratorRepository) GrantsByUser(ctx context.Context, userID int64) ([]models.ModeratorGrant, error) {
	query := `SELECT user_id, chat_id, created_at FROM moderators WHERE user_id = ? ORDER BY chat_id`

	grants := []models.ModeratorGrant{}
	if err := r.db.SelectContext(ctx, &grants, r.db.Rebind(query), userID); err != nil {
		return nil, fmt.Errorf("failed to query moderator grants: %w", err)
	}
	return grants, nil
}

// Insert adds a grant if absent. It reports whether a row was created.
func (r *ModeratorRepository) Insert(ctx context.Context, userID, chatID int64) (bool, error) {
	query := `
		INSERT INTO moderators (user_id, chat_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, chat_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), userID, chatID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert moderator grant: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// Delete removes the grant. It reports whether a row was deleted.
func (r *ModeratorRepository) Delete(ctx context.Context, userID, chatID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM moderators WHERE user_id = ? AND chat_id = ?`), userID, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to delete moderator grant: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListByChat returns the moderators of one chat (super admins are not listed).
func (r *ModeratorRepository) ListByChat(ctx context.Context, chatID int64) ([]models.Moderator, error) {
	query := `
		SELECT m.user_id, COALESCE(u.username, '') AS username, m.chat_id
		FROM moderators m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.chat_id = ?
		ORDER BY m.created_at, m.user_id
	`
	moderators := []models.Moderator{}
	if err := r.db.SelectContext(ctx, &moderators, r.db.Rebind(query), chatID); err != nil {
		return nil, fmt.Errorf("failed to list moderators: %w", err)
	}
	return moderators, nil
}

// HasModerators reports whether any ordinary grant exists for the chat.
func (r *ModeratorRepository) HasModerators(ctx context.Context, chatID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM moderators WHERE chat_id = ?)`
	if err := r.db.QueryRowContext(ctx, r.db.Rebind(query), chatID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check moderators: %w", err)
	}
	return exists, nil
}
