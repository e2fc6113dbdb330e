package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/models"
)

type ModerationRepository struct {
	db *database.DB
}

func NewModerationRepository(db *database.DB) *ModerationRepository {
	return &ModerationRepository{db: db}
}

// AddBannedWord bans a word in a chat. It reports false when the word was already banned.
func (r *ModerationRepository) AddBannedWord(ctx context.Context, chatID int64, word string, bannedBy int64) (bool, error) {
	query := `
		INSERT INTO banned_words (chat_id, word, banned_by, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (chat_id, word) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), chatID, word, bannedBy, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to add banned word: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// RemoveBannedWord removes a word from a chat's list. It reports false when the word was not banned.
func (r *ModerationRepository) RemoveBannedWord(ctx context.Context, chatID int64, word string) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM banned_words WHERE chat_id = ? AND word = ?`), chatID, word)
	if err != nil {
		return false, fmt.Errorf("failed to remove banned word: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ClearBannedWords removes every banned word of a chat and returns how many were removed.
func (r *ModerationRepository) ClearBannedWords(ctx context.Context, chatID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM banned_words WHERE chat_id = ?`), chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear banned words: %w", err)
	}
	return result.RowsAffected()
}

// GetBannedWords returns the chat's words in insertion order.
func (r *ModerationRepository) GetBannedWords(ctx context.Context, chatID int64) ([]string, error) {
	words := []string{}
	if err := r.db.SelectContext(ctx, &words, r.db.Rebind(`SELECT word FROM banned_words WHERE chat_id = ? ORDER BY id`), chatID); err != nil {
		return nil, fmt.Errorf("failed to get banned words: %w", err)
	}
	return words, nil
}

// ListBannedWords returns the full rows, for the operator API.
func (r *ModerationRepository) ListBannedWords(ctx context.Context, chatID int64) ([]models.BannedWord, error) {
	query := `SELECT chat_id, word, banned_by, created_at FROM banned_words WHERE chat_id = ? ORDER BY id`

	words := []models.BannedWord{}
	if err := r.db.SelectContext(ctx, &words, r.db.Rebind(query), chatID); err != nil {
		return nil, fmt.Errorf("failed to list banned words: %w", err)
	}
	return words, nil
}

// AddViolationLog appends a log row and sets its ID.
func (r *ModerationRepository) AddViolationLog(ctx context.Context, log *models.ViolationLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	log.CreatedAt = log.CreatedAt.UTC()

	query := `
		INSERT INTO violation_logs (chat_id, user_id, username, message_id, message_text, created_at, words)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(query),
		log.ChatID,
		log.UserID,
		log.Username,
		log.MessageID,
		log.Text,
		log.CreatedAt,
		log.Words,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to add violation log: %w", err)
	}
	return nil
}

// GetViolationLogs returns a chat's logs in chronological order. A non-nil day restricts
// the result to that UTC calendar day. A positive limit keeps only the most recent rows.
func (r *ModerationRepository) GetViolationLogs(ctx context.Context, chatID int64, day *time.Time, limit int) ([]models.ViolationLog, error) {
	query := `
		SELECT id, chat_id, user_id, username, message_id, message_text, created_at, words
		FROM violation_logs
		WHERE chat_id = ?
	`
	args := []any{chatID}

	if day != nil {
		start, end := DayBounds(*day)
		query += ` AND created_at >= ? AND created_at < ?`
		args = append(args, start, end)
	}

	if limit > 0 {
		query += ` ORDER BY id DESC LIMIT ?`
		args = append(args, limit)
	} else {
		query += ` ORDER BY id`
	}

	logs := []models.ViolationLog{}
	if err := r.db.SelectContext(ctx, &logs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get violation logs: %w", err)
	}

	if limit > 0 {
		for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
			logs[i], logs[j] = logs[j], logs[i]
		}
	}
	return logs, nil
}

// AllViolationLogs returns every log of every chat ordered by ID, for export.
func (r *ModerationRepository) AllViolationLogs(ctx context.Context) ([]models.ViolationLog, error) {
	query := `
		SELECT id, chat_id, user_id, username, message_id, message_text, created_at, words
		FROM violation_logs
		ORDER BY id
	`
	logs := []models.ViolationLog{}
	if err := r.db.SelectContext(ctx, &logs, query); err != nil {
		return nil, fmt.Errorf("failed to get violation logs: %w", err)
	}
	return logs, nil
}

// DayBounds returns the half-open UTC interval [00:00, 24:00) of the day containing t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
