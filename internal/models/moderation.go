package models

import "time"

// BannedWord is a case-folded word banned in one chat.
type BannedWord struct {
	ChatID    int64     `json:"chat_id" db:"chat_id"`
	Word      string    `json:"word" db:"word"`
	BannedBy  int64     `json:"banned_by" db:"banned_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Template is a chat-specific warning pattern. TemplateID is dense and starts at 1.
type Template struct {
	ChatID     int64  `json:"chat_id" db:"chat_id"`
	TemplateID int    `json:"template_id" db:"template_id"`
	Text       string `json:"text" db:"template_text"`
}

type BanWordRequest struct {
	Word string `json:"word" binding:"required,max=255"`
}

type AddModeratorRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Username string `json:"username" binding:"max=255"`
}

type AddTemplateRequest struct {
	Text string `json:"text" binding:"required,max=4096"`
}

type GetViolationsRequest struct {
	Date  string `form:"date"`
	Limit int    `form:"limit"`
}
