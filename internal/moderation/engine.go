package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tullo/wordguard/internal/models"
	"go.uber.org/zap"
)

// Publisher fans a logged violation out to live subscribers.
type Publisher interface {
	PublishViolation(ctx context.Context, log *models.ViolationLog) error
}

// Recorder mirrors a logged violation to the audit trail.
type Recorder interface {
	Record(log *models.ViolationLog) error
}

// Message is an inbound chat message to be checked.
type Message struct {
	ChatID      int64
	ChatName    string
	UserID      int64
	Username    string
	DisplayName string
	MessageID   int64
	Text        string
	SentAt      time.Time
}

// Verdict is the engine's decision for one message. A clean message has no Words.
type Verdict struct {
	Words  []string
	Reply  string
	Delete bool
	Log    *models.ViolationLog
}

// Violation reports whether the message matched any banned word.
func (v *Verdict) Violation() bool {
	return v != nil && len(v.Words) > 0
}

// Engine checks messages against a chat's banned words and decides the response.
type Engine struct {
	store     Store
	matcher   *Matcher
	renderer  *Renderer
	publisher Publisher
	recorder  Recorder
	logger    *zap.Logger
}

func NewEngine(store Store, renderer *Renderer, logger *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		matcher:  NewMatcher(),
		renderer: renderer,
		logger:   logger,
	}
}

// WithPublisher sets where violation events are published.
func (e *Engine) WithPublisher(p Publisher) *Engine {
	e.publisher = p
	return e
}

// WithRecorder sets the audit mirror.
func (e *Engine) WithRecorder(r Recorder) *Engine {
	e.recorder = r
	return e
}

// CheckMessage matches msg against the chat's current banned words. On a violation
// the warning is rendered and the log is appended before the verdict is returned;
// sending the reply and deleting the message are left to the caller.
//
// Once a banned word has matched the verdict is always returned, even when reading
// the deletion flag or appending the log fails. The error then reports the store
// failure, Delete is false if the flag could not be read and Log is nil if the
// append failed.
func (e *Engine) CheckMessage(ctx context.Context, msg Message) (*Verdict, error) {
	if err := e.store.EnsureChat(ctx, msg.ChatID, msg.ChatName); err != nil {
		return nil, err
	}

	banned, err := e.store.BannedWords(ctx, msg.ChatID)
	if err != nil {
		return nil, err
	}

	words := e.matcher.FindViolations(msg.Text, banned)
	if len(words) == 0 {
		return &Verdict{}, nil
	}

	name := msg.DisplayName
	if name == "" {
		name = msg.Username
	}
	verdict := &Verdict{
		Words: words,
		Reply: e.renderer.Render(ctx, msg.ChatID, words, name),
	}

	var errs []error
	if deleteFlag, err := e.store.DeletionFlag(ctx, msg.ChatID); err != nil {
		errs = append(errs, fmt.Errorf("failed to read deletion flag: %w", err))
	} else {
		verdict.Delete = deleteFlag
	}

	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	entry := &models.ViolationLog{
		ChatID:    msg.ChatID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		CreatedAt: sentAt.UTC(),
		Words:     models.WordList(words),
	}
	if err := e.store.AppendViolationLog(ctx, entry); err != nil {
		errs = append(errs, fmt.Errorf("failed to append violation log: %w", err))
	} else {
		verdict.Log = entry
		e.mirror(ctx, entry)
	}

	e.logger.Info("Violation detected",
		zap.Int64("chat_id", msg.ChatID),
		zap.Int64("user_id", msg.UserID),
		zap.Int64("message_id", msg.MessageID),
		zap.Strings("words", words))

	return verdict, errors.Join(errs...)
}

func (e *Engine) mirror(ctx context.Context, entry *models.ViolationLog) {
	if e.recorder != nil {
		if err := e.recorder.Record(entry); err != nil {
			e.logger.Warn("Failed to write audit record",
				zap.Int64("log_id", entry.ID),
				zap.Error(err))
		}
	}
	if e.publisher != nil {
		if err := e.publisher.PublishViolation(ctx, entry); err != nil {
			e.logger.Warn("Failed to publish violation",
				zap.Int64("log_id", entry.ID),
				zap.Error(err))
		}
	}
}
