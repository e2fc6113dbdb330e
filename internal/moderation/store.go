package moderation

import (
	"context"
	"time"

	"github.com/tullo/wordguard/internal/models"
)

// GrantStore is the slice of the store the Authorizer needs.
type GrantStore interface {
	ModeratorGrants(ctx context.Context, userID int64) ([]models.ModeratorGrant, error)
	InsertModeratorGrant(ctx context.Context, userID, chatID int64) (bool, error)
	DeleteModeratorGrant(ctx context.Context, userID, chatID int64) (bool, error)
	UpsertUser(ctx context.Context, userID int64, username string) error
}

// TemplateStore supplies a chat's warning templates.
type TemplateStore interface {
	Templates(ctx context.Context, chatID int64) ([]models.Template, error)
}

// LogStore reads violation logs. A nil day means all time; limit <= 0 means no limit.
type LogStore interface {
	ViolationLogs(ctx context.Context, chatID int64, day *time.Time, limit int) ([]models.ViolationLog, error)
}

// Store is every persistence operation the moderation flows use. Implementations must
// make insert-if-absent operations atomic and must not cache between calls.
type Store interface {
	GrantStore
	TemplateStore
	LogStore

	EnsureChat(ctx context.Context, chatID int64, name string) error
	DeleteChatCascade(ctx context.Context, chatID int64) error
	DeletionFlag(ctx context.Context, chatID int64) (bool, error)
	SetDeletionFlag(ctx context.Context, chatID int64, enabled bool) error
	Locale(ctx context.Context, chatID int64) (string, error)
	SetLocale(ctx context.Context, chatID int64, code string) (bool, error)

	BannedWords(ctx context.Context, chatID int64) ([]string, error)
	AddBannedWord(ctx context.Context, chatID int64, word string, moderatorID int64) (bool, error)
	RemoveBannedWord(ctx context.Context, chatID int64, word string) (bool, error)
	ClearBannedWords(ctx context.Context, chatID int64) (int64, error)

	ListModerators(ctx context.Context, chatID int64) ([]models.Moderator, error)
	HasModerators(ctx context.Context, chatID int64) (bool, error)

	AddTemplate(ctx context.Context, chatID int64, text string) (int, error)
	RemoveTemplate(ctx context.Context, chatID int64, templateID int) (bool, error)
	RenumberTemplates(ctx context.Context, chatID int64) error

	AppendViolationLog(ctx context.Context, log *models.ViolationLog) error
}
