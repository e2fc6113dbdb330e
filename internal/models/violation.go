package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// WordList is the ordered list of banned words matched in a message. It is stored
// as a JSON array; an empty list is stored as NULL.
type WordList []string

// Value implements driver.Valuer
func (w WordList) Value() (driver.Value, error) {
	if len(w) == 0 {
		return nil, nil
	}
	b, err := sonic.Marshal([]string(w))
	if err != nil {
		return nil, fmt.Errorf("failed to encode word list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (w *WordList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*w = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported word list type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*w = nil
		return nil
	}
	var words []string
	if err := sonic.Unmarshal(raw, &words); err != nil {
		return fmt.Errorf("failed to decode word list: %w", err)
	}
	*w = words
	return nil
}

// ViolationLog records one matched message. Rows are append-only.
type ViolationLog struct {
	ID        int64     `json:"id" db:"id"`
	ChatID    int64     `json:"chat_id" db:"chat_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Username  string    `json:"username" db:"username"`
	MessageID int64     `json:"message_id" db:"message_id"`
	Text      string    `json:"message_text" db:"message_text"`
	CreatedAt time.Time `json:"timestamp" db:"created_at"`
	Words     WordList  `json:"words,omitempty" db:"words"`
}

// IsViolation reports whether at least one banned word matched.
func (l *ViolationLog) IsViolation() bool {
	return len(l.Words) > 0
}

// ViolationEvent is published for live dashboards whenever a violation is logged.
type ViolationEvent struct {
	ID  uuid.UUID    `json:"id"`
	Log ViolationLog `json:"log"`
}
