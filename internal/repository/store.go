package repository

import (
	"context"
	"time"

	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/moderation"
)

var _ moderation.Store = (*Store)(nil)

// Store bundles the repositories behind the moderation.Store interface.
type Store struct {
	chats      *ChatRepository
	users      *UserRepository
	moderators *ModeratorRepository
	moderation *ModerationRepository
	templates  *TemplateRepository
}

func NewStore(db *database.DB) *Store {
	return &Store{
		chats:      NewChatRepository(db),
		users:      NewUserRepository(db),
		moderators: NewModeratorRepository(db),
		moderation: NewModerationRepository(db),
		templates:  NewTemplateRepository(db),
	}
}

func (s *Store) EnsureChat(ctx context.Context, chatID int64, name string) error {
	return s.chats.Ensure(ctx, chatID, name)
}

func (s *Store) Chat(ctx context.Context, chatID int64) (*models.Chat, error) {
	return s.chats.GetByID(ctx, chatID)
}

func (s *Store) DeleteChatCascade(ctx context.Context, chatID int64) error {
	return s.chats.DeleteCascade(ctx, chatID)
}

func (s *Store) DeletionFlag(ctx context.Context, chatID int64) (bool, error) {
	return s.chats.DeletionFlag(ctx, chatID)
}

func (s *Store) SetDeletionFlag(ctx context.Context, chatID int64, enabled bool) error {
	return s.chats.SetDeletionFlag(ctx, chatID, enabled)
}

func (s *Store) Locale(ctx context.Context, chatID int64) (string, error) {
	return s.chats.Locale(ctx, chatID)
}

func (s *Store) SetLocale(ctx context.Context, chatID int64, code string) (bool, error) {
	return s.chats.SetLocale(ctx, chatID, code)
}

func (s *Store) BannedWords(ctx context.Context, chatID int64) ([]string, error) {
	return s.moderation.GetBannedWords(ctx, chatID)
}

func (s *Store) BannedWordRows(ctx context.Context, chatID int64) ([]models.BannedWord, error) {
	return s.moderation.ListBannedWords(ctx, chatID)
}

func (s *Store) AddBannedWord(ctx context.Context, chatID int64, word string, moderatorID int64) (bool, error) {
	return s.moderation.AddBannedWord(ctx, chatID, word, moderatorID)
}

func (s *Store) RemoveBannedWord(ctx context.Context, chatID int64, word string) (bool, error) {
	return s.moderation.RemoveBannedWord(ctx, chatID, word)
}

func (s *Store) ClearBannedWords(ctx context.Context, chatID int64) (int64, error) {
	return s.moderation.ClearBannedWords(ctx, chatID)
}

func (s *Store) ModeratorGrants(ctx context.Context, userID int64) ([]models.ModeratorGrant, error) {
	return s.moderators.GrantsByUser(ctx, userID)
}

func (s *Store) InsertModeratorGrant(ctx context.Context, userID, chatID int64) (bool, error) {
	return s.moderators.Insert(ctx, userID, chatID)
}

func (s *Store) DeleteModeratorGrant(ctx context.Context, userID, chatID int64) (bool, error) {
	return s.moderators.Delete(ctx, userID, chatID)
}

func (s *Store) ListModerators(ctx context.Context, chatID int64) ([]models.Moderator, error) {
	return s.moderators.ListByChat(ctx, chatID)
}

func (s *Store) HasModerators(ctx context.Context, chatID int64) (bool, error) {
	return s.moderators.HasModerators(ctx, chatID)
}

func (s *Store) UpsertUser(ctx context.Context, userID int64, username string) error {
	return s.users.Upsert(ctx, userID, username)
}

func (s *Store) User(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Store) Templates(ctx context.Context, chatID int64) ([]models.Template, error) {
	return s.templates.List(ctx, chatID)
}

func (s *Store) AddTemplate(ctx context.Context, chatID int64, text string) (int, error) {
	return s.templates.Add(ctx, chatID, text)
}

func (s *Store) RemoveTemplate(ctx context.Context, chatID int64, templateID int) (bool, error) {
	return s.templates.Remove(ctx, chatID, templateID)
}

func (s *Store) RenumberTemplates(ctx context.Context, chatID int64) error {
	return s.templates.Renumber(ctx, chatID)
}

func (s *Store) AppendViolationLog(ctx context.Context, log *models.ViolationLog) error {
	return s.moderation.AddViolationLog(ctx, log)
}

func (s *Store) ViolationLogs(ctx context.Context, chatID int64, day *time.Time, limit int) ([]models.ViolationLog, error) {
	return s.moderation.GetViolationLogs(ctx, chatID, day, limit)
}

func (s *Store) AllViolationLogs(ctx context.Context) ([]models.ViolationLog, error) {
	return s.moderation.AllViolationLogs(ctx)
}
