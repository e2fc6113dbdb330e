package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/tullo/wordguard/internal/locale"
	"github.com/tullo/wordguard/internal/moderation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config tunes the update loop.
type Config struct {
	Workers         int
	StoreTimeout    time.Duration
	DefaultLocale   string
	DefaultTemplate string
}

// Bot routes inbound events to the moderation engine and the chat commands.
type Bot struct {
	transport  Transport
	store      moderation.Store
	engine     *moderation.Engine
	authorizer *moderation.Authorizer
	aggregator *moderation.Aggregator
	locales    *locale.Bundle
	commands   map[string]commandFunc
	cfg        Config
	logger     *zap.Logger
}

func New(transport Transport, store moderation.Store, engine *moderation.Engine, locales *locale.Bundle,
	cfg Config, logger *zap.Logger) *Bot {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = locales.Fallback()
	}

	b := &Bot{
		transport:  transport,
		store:      store,
		engine:     engine,
		authorizer: moderation.NewAuthorizer(store),
		aggregator: moderation.NewAggregator(store),
		locales:    locales,
		cfg:        cfg,
		logger:     logger,
	}
	b.commands = b.commandTable()
	return b
}

// Run handles events on a bounded pool of workers until events is closed or ctx
// is cancelled, then waits for in-flight events.
func (b *Bot) Run(ctx context.Context, events <-chan Event) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)

	b.logger.Info("Bot started", zap.Int("workers", b.cfg.Workers))
	defer b.logger.Info("Bot stopped")

	for {
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return nil
		case ev, ok := <-events:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				b.Handle(gctx, ev)
				return nil
			})
		}
	}
}

// Handle processes one event. Failures are reported to the chat or logged; a
// panic is recovered so one bad update cannot stop the loop.
func (b *Bot) Handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic while handling update",
				zap.String("kind", ev.Kind.String()),
				zap.Int64("chat_id", ev.ChatID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, b.cfg.StoreTimeout)
	defer cancel()

	switch ev.Kind {
	case EventMessage:
		b.handleMessage(ctx, ev)
	case EventCommand:
		b.handleCommand(ctx, ev)
	case EventBotAdded:
		b.handleBotAdded(ctx, ev)
	case EventBotRemoved:
		b.handleBotRemoved(ctx, ev)
	}
}

func (b *Bot) handleMessage(ctx context.Context, ev Event) {
	if ev.Text == "" {
		return
	}

	verdict, err := b.engine.CheckMessage(ctx, moderation.Message{
		ChatID:      ev.ChatID,
		ChatName:    ev.ChatName,
		UserID:      ev.UserID,
		Username:    ev.Username,
		DisplayName: ev.DisplayName,
		MessageID:   ev.MessageID,
		Text:        ev.Text,
		SentAt:      ev.SentAt,
	})
	if err != nil {
		b.logger.Error("Failed to check message",
			zap.Int64("chat_id", ev.ChatID),
			zap.Int64("message_id", ev.MessageID),
			zap.Error(err))
	}
	if !verdict.Violation() {
		return
	}

	b.send(ctx, ev.ChatID, verdict.Reply)
	if verdict.Delete {
		if err := b.transport.DeleteMessage(ctx, ev.ChatID, ev.MessageID); err != nil {
			b.logger.Warn("Failed to delete message",
				zap.Int64("chat_id", ev.ChatID),
				zap.Int64("message_id", ev.MessageID),
				zap.Error(err))
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, ev Event) {
	cmd, ok := b.commands[ev.Command]
	if !ok {
		return
	}

	lang := b.chatLocale(ctx, ev.ChatID)
	reply, err := cmd(ctx, ev, lang)
	if err != nil {
		b.fail(ctx, ev, lang, err)
		return
	}
	b.send(ctx, ev.ChatID, reply)
}

// fail maps a command error to the user-visible reply.
func (b *Bot) fail(ctx context.Context, ev Event, lang string, err error) {
	switch {
	case errors.Is(err, moderation.ErrAuthorizationDenied):
		b.logger.Info("Command denied",
			zap.String("command", ev.Command),
			zap.Int64("chat_id", ev.ChatID),
			zap.Int64("user_id", ev.UserID))
		b.send(ctx, ev.ChatID, b.locales.T(lang, "no_access", nil))
	default:
		if v, ok := moderation.IsValidation(err); ok {
			b.send(ctx, ev.ChatID, b.locales.T(lang, v.Key, v.Args))
			return
		}
		b.logger.Error("Command failed",
			zap.String("command", ev.Command),
			zap.Int64("chat_id", ev.ChatID),
			zap.Int64("user_id", ev.UserID),
			zap.Error(err))
		b.send(ctx, ev.ChatID, b.locales.T(lang, "error", nil))
	}
}

func (b *Bot) handleBotAdded(ctx context.Context, ev Event) {
	if err := b.store.EnsureChat(ctx, ev.ChatID, ev.ChatName); err != nil {
		b.logger.Error("Failed to register chat", zap.Int64("chat_id", ev.ChatID), zap.Error(err))
		return
	}
	lang := b.chatLocale(ctx, ev.ChatID)
	b.send(ctx, ev.ChatID, b.locales.T(lang, "bot_add.welcome", nil))

	if ev.UserID == 0 {
		return
	}

	hasMods, err := b.store.HasModerators(ctx, ev.ChatID)
	if err != nil {
		b.logger.Error("Failed to check moderators", zap.Int64("chat_id", ev.ChatID), zap.Error(err))
		return
	}
	if hasMods {
		b.send(ctx, ev.ChatID, b.locales.T(lang, "bot_add.no_new", nil))
		return
	}

	inviter := ev.Sender()
	result, err := b.authorizer.Grant(ctx, ev.ChatID, inviter.ID, inviter.Username)
	if err != nil {
		b.logger.Error("Failed to grant inviter", zap.Int64("chat_id", ev.ChatID), zap.Error(err))
		return
	}
	if result == moderation.GrantAdded {
		b.send(ctx, ev.ChatID, b.locales.T(lang, "bot_add.granted", map[string]string{"user": inviter.Name()}))
	}
	b.logger.Info("Bot added to chat", zap.Int64("chat_id", ev.ChatID), zap.Int64("inviter", inviter.ID))
}

func (b *Bot) handleBotRemoved(ctx context.Context, ev Event) {
	if err := b.store.DeleteChatCascade(ctx, ev.ChatID); err != nil {
		b.logger.Error("Failed to delete chat data", zap.Int64("chat_id", ev.ChatID), zap.Error(err))
		return
	}
	b.logger.Info("Bot removed from chat, chat data deleted", zap.Int64("chat_id", ev.ChatID))
}

// chatLocale returns the chat's locale, or the default when unset or unreadable.
func (b *Bot) chatLocale(ctx context.Context, chatID int64) string {
	code, err := b.store.Locale(ctx, chatID)
	if err != nil {
		b.logger.Warn("Failed to read chat locale", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	if code == "" {
		code = b.cfg.DefaultLocale
	}
	return b.locales.Resolve(code)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	if err := b.transport.SendText(ctx, chatID, text); err != nil {
		b.logger.Warn("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) require(ctx context.Context, ev Event) error {
	if _, err := b.authorizer.Require(ctx, ev.ChatID, ev.UserID); err != nil {
		return fmt.Errorf("command %s: %w", ev.Command, err)
	}
	return nil
}
