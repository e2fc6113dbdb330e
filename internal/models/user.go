package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SuperScope is the reserved chat id of a grant that is authoritative in every chat.
const SuperScope int64 = 0

type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the username, or the numeric id when no username is known.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

// ModeratorGrant gives a user administrative rights over one chat, or over every
// chat when ChatID is SuperScope.
type ModeratorGrant struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	ChatID    int64     `json:"chat_id" db:"chat_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsSuper reports whether the grant is super-scoped.
func (g ModeratorGrant) IsSuper() bool {
	return g.ChatID == SuperScope
}

// Moderator is a grant joined with the user's last known name.
type Moderator struct {
	UserID   int64  `json:"user_id" db:"user_id"`
	Username string `json:"username" db:"username"`
	ChatID   int64  `json:"chat_id" db:"chat_id"`
}

// NormalizeUsername strips surrounding whitespace and a leading @.
func NormalizeUsername(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}

// Validate checks basic user fields
func (u *User) Validate() error {
	if u.ID <= 0 {
		return fmt.Errorf("user id must be positive")
	}
	if len(u.Username) > 255 {
		return fmt.Errorf("username too long")
	}
	return nil
}
