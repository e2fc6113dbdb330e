package moderation_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tullo/wordguard/internal/models"
)

var errStoreDown = errors.New("store down")

// memStore is an in-memory moderation.Store for unit tests.
type memStore struct {
	mu sync.Mutex

	chats     map[int64]*models.Chat
	users     map[int64]string
	grants    []models.ModeratorGrant
	words     map[int64][]string
	templates map[int64][]models.Template
	logs      []models.ViolationLog
	nextLogID int64

	failTemplates bool
	failGrants    bool
	// lostRace makes the next grant insert report a concurrent winner
	lostRace bool
}

func newMemStore() *memStore {
	return &memStore{
		chats:     map[int64]*models.Chat{},
		users:     map[int64]string{},
		words:     map[int64][]string{},
		templates: map[int64][]models.Template{},
	}
}

func (s *memStore) EnsureChat(_ context.Context, chatID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		if name != "" {
			c.Name = name
		}
		return nil
	}
	s.chats[chatID] = &models.Chat{ID: chatID, Name: name}
	return nil
}

func (s *memStore) DeleteChatCascade(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
	delete(s.words, chatID)
	delete(s.templates, chatID)
	kept := s.grants[:0]
	for _, g := range s.grants {
		if g.ChatID != chatID {
			kept = append(kept, g)
		}
	}
	s.grants = kept
	var logs []models.ViolationLog
	for _, l := range s.logs {
		if l.ChatID != chatID {
			logs = append(logs, l)
		}
	}
	s.logs = logs
	return nil
}

func (s *memStore) DeletionFlag(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		return c.DeleteMessages, nil
	}
	return false, nil
}

func (s *memStore) SetDeletionFlag(_ context.Context, chatID int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		c = &models.Chat{ID: chatID}
		s.chats[chatID] = c
	}
	c.DeleteMessages = enabled
	return nil
}

func (s *memStore) Locale(_ context.Context, chatID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok && c.Locale != nil {
		return *c.Locale, nil
	}
	return "", nil
}

func (s *memStore) SetLocale(_ context.Context, chatID int64, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return false, nil
	}
	c.Locale = &code
	return true, nil
}

func (s *memStore) BannedWords(_ context.Context, chatID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.words[chatID]...), nil
}

func (s *memStore) AddBannedWord(_ context.Context, chatID int64, word string, _ int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.words[chatID] {
		if w == word {
			return false, nil
		}
	}
	s.words[chatID] = append(s.words[chatID], word)
	return true, nil
}

func (s *memStore) RemoveBannedWord(_ context.Context, chatID int64, word string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.words[chatID] {
		if w == word {
			s.words[chatID] = append(s.words[chatID][:i], s.words[chatID][i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ClearBannedWords(_ context.Context, chatID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.words[chatID]))
	delete(s.words, chatID)
	return n, nil
}

func (s *memStore) ModeratorGrants(_ context.Context, userID int64) ([]models.ModeratorGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGrants {
		return nil, errStoreDown
	}
	var out []models.ModeratorGrant
	for _, g := range s.grants {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (s *memStore) InsertModeratorGrant(_ context.Context, userID, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lostRace {
		s.lostRace = false
		s.grants = append(s.grants, models.ModeratorGrant{UserID: userID, ChatID: chatID})
		return false, nil
	}
	for _, g := range s.grants {
		if g.UserID == userID && g.ChatID == chatID {
			return false, nil
		}
	}
	s.grants = append(s.grants, models.ModeratorGrant{UserID: userID, ChatID: chatID, CreatedAt: time.Now()})
	return true, nil
}

func (s *memStore) DeleteModeratorGrant(_ context.Context, userID, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.grants {
		if g.UserID == userID && g.ChatID == chatID {
			s.grants = append(s.grants[:i], s.grants[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListModerators(_ context.Context, chatID int64) ([]models.Moderator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Moderator
	for _, g := range s.grants {
		if g.ChatID == chatID {
			out = append(out, models.Moderator{UserID: g.UserID, Username: s.users[g.UserID], ChatID: chatID})
		}
	}
	return out, nil
}

func (s *memStore) HasModerators(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grants {
		if g.ChatID == chatID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) UpsertUser(_ context.Context, userID int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = username
	return nil
}

func (s *memStore) Templates(_ context.Context, chatID int64) ([]models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTemplates {
		return nil, errStoreDown
	}
	return append([]models.Template(nil), s.templates[chatID]...), nil
}

func (s *memStore) AddTemplate(_ context.Context, chatID int64, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := len(s.templates[chatID]) + 1
	s.templates[chatID] = append(s.templates[chatID], models.Template{ChatID: chatID, TemplateID: id, Text: text})
	return id, nil
}

func (s *memStore) RemoveTemplate(_ context.Context, chatID int64, templateID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.templates[chatID]
	for i, t := range list {
		if t.TemplateID == templateID {
			list = append(list[:i], list[i+1:]...)
			for j := range list {
				list[j].TemplateID = j + 1
			}
			s.templates[chatID] = list
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) RenumberTemplates(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for j := range s.templates[chatID] {
		s.templates[chatID][j].TemplateID = j + 1
	}
	return nil
}

func (s *memStore) AppendViolationLog(_ context.Context, log *models.ViolationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLogID++
	log.ID = s.nextLogID
	s.logs = append(s.logs, *log)
	return nil
}

func (s *memStore) ViolationLogs(_ context.Context, chatID int64, day *time.Time, limit int) ([]models.ViolationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ViolationLog
	for _, l := range s.logs {
		if l.ChatID != chatID {
			continue
		}
		if day != nil {
			y1, m1, d1 := l.CreatedAt.UTC().Date()
			y2, m2, d2 := day.UTC().Date()
			if y1 != y2 || m1 != m2 || d1 != d2 {
				continue
			}
		}
		out = append(out, l)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
