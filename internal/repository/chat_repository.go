package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/models"
)

// ErrChatNotFound is returned when a chat row does not exist.
var ErrChatNotFound = errors.New("chat not found")

type ChatRepository struct {
	db *database.DB
}

func NewChatRepository(db *database.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Ensure creates the chat on first contact. A non-empty name refreshes the stored one.
func (r *ChatRepository) Ensure(ctx context.Context, chatID int64, name string) error {
	query := `
		INSERT INTO chats (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = CASE WHEN excluded.name = '' THEN chats.name ELSE excluded.name END
	`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), chatID, name, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to ensure chat: %w", err)
	}
	return nil
}

// GetByID retrieves a chat by ID
func (r *ChatRepository) GetByID(ctx context.Context, chatID int64) (*models.Chat, error) {
	query := `SELECT id, name, delete_messages, locale, created_at FROM chats WHERE id = ?`

	chat := &models.Chat{}
	err := r.db.GetContext(ctx, chat, r.db.Rebind(query), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return chat, nil
}

// DeletionFlag reports whether violating messages are deleted. Unknown chats default to false.
func (r *ChatRepository) DeletionFlag(ctx context.Context, chatID int64) (bool, error) {
	var enabled bool
	err := r.db.GetContext(ctx, &enabled, r.db.Rebind(`SELECT delete_messages FROM chats WHERE id = ?`), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get deletion flag: %w", err)
	}
	return enabled, nil
}

// SetDeletionFlag stores the flag, creating the chat row if needed.
func (r *ChatRepository) SetDeletionFlag(ctx context.Context, chatID int64, enabled bool) error {
	query := `
		INSERT INTO chats (id, delete_messages, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET delete_messages = excluded.delete_messages
	`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), chatID, enabled, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set deletion flag: %w", err)
	}
	return nil
}

// Locale returns the chat's locale code, or "" when the chat uses the system default.
func (r *ChatRepository) Locale(ctx context.Context, chatID int64) (string, error) {
	var code sql.NullString
	err := r.db.GetContext(ctx, &code, r.db.Rebind(`SELECT locale FROM chats WHERE id = ?`), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get locale: %w", err)
	}
	return code.String, nil
}

// SetLocale stores the chat's locale code. It reports false when the chat does not exist.
func (r *ChatRepository) SetLocale(ctx context.Context, chatID int64, code string) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE chats SET locale = ? WHERE id = ?`), code, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to set locale: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeleteCascade removes the chat and every row scoped to it in one transaction.
// Super-scoped grants are never touched.
func (r *ChatRepository) DeleteCascade(ctx context.Context, chatID int64) error {
	if chatID == models.SuperScope {
		return fmt.Errorf("refusing to delete the super scope")
	}

	statements := []string{
		`DELETE FROM violation_logs WHERE chat_id = ?`,
		`DELETE FROM message_templates WHERE chat_id = ?`,
		`DELETE FROM banned_words WHERE chat_id = ?`,
		`DELETE FROM moderators WHERE chat_id = ?`,
		`DELETE FROM chats WHERE id = ?`,
	}

	return r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), chatID); err != nil {
				return fmt.Errorf("failed to delete chat %d: %w", chatID, err)
			}
		}
		return nil
	})
}
