package models

import "time"

// Chat is a group the bot moderates.
type Chat struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	DeleteMessages bool      `json:"delete_messages" db:"delete_messages"`
	Locale         *string   `json:"locale,omitempty" db:"locale"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ChatSettings is the mutable per-chat configuration. Watchers counts the live
// feed connections receiving the chat's events and is read-only.
type ChatSettings struct {
	DeleteMessages bool   `json:"delete_messages"`
	Locale         string `json:"locale"`
	Watchers       int    `json:"watchers"`
}

type UpdateSettingsRequest struct {
	DeleteMessages *bool   `json:"delete_messages"`
	Locale         *string `json:"locale"`
}
