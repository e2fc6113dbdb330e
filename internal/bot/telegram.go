package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tullo/wordguard/internal/models"
	"go.uber.org/zap"
)

// Telegram is the Transport for the Telegram Bot API. It also produces the
// inbound event stream from long polling.
type Telegram struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

var _ Transport = (*Telegram)(nil)

// tgLogger routes the client library's own logging into zap at debug level.
type tgLogger struct {
	sugar *zap.SugaredLogger
}

func (l tgLogger) Println(v ...interface{}) {
	l.sugar.Debugln(v...)
}

func (l tgLogger) Printf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// NewTelegram authenticates with the Bot API.
func NewTelegram(token string, logger *zap.Logger) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	_ = tgbotapi.SetLogger(tgLogger{sugar: logger.Named("telegram").Sugar()})

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}

	logger.Info("Authorized on Telegram", zap.String("bot", api.Self.UserName), zap.Int64("bot_id", api.Self.ID))
	return &Telegram{api: api, logger: logger}, nil
}

// Username returns the bot's own username.
func (t *Telegram) Username() string {
	return t.api.Self.UserName
}

func (t *Telegram) SendText(_ context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (t *Telegram) DeleteMessage(_ context.Context, chatID, messageID int64) error {
	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, int(messageID))); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// ResolveUser looks a numeric id up as a chat member and an @username among the
// chat administrators; the Bot API offers no lookup of ordinary members by name.
func (t *Telegram) ResolveUser(_ context.Context, chatID int64, ref string) (int64, string, error) {
	ref = strings.TrimSpace(ref)

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		member, err := t.api.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: id},
		})
		if err != nil || member.User == nil || member.HasLeft() || member.WasKicked() {
			return 0, "", fmt.Errorf("%w: %s", ErrUserNotFound, ref)
		}
		return member.User.ID, member.User.UserName, nil
	}

	name := models.NormalizeUsername(ref)
	admins, err := t.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to get chat administrators: %w", err)
	}
	for _, a := range admins {
		if a.User != nil && strings.EqualFold(a.User.UserName, name) {
			return a.User.ID, a.User.UserName, nil
		}
	}
	return 0, "", fmt.Errorf("%w: %s", ErrUserNotFound, ref)
}

// Events long-polls for updates until ctx is done. The returned channel is
// closed when polling stops.
func (t *Telegram) Events(ctx context.Context) <-chan Event {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := t.api.GetUpdatesChan(cfg)

	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				t.api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := EventFromUpdate(update, t.api.Self.ID, t.api.Self.UserName)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					t.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

// EventFromUpdate normalises a Telegram update. Updates the bot does not act on
// report false.
func EventFromUpdate(update tgbotapi.Update, botID int64, botName string) (Event, bool) {
	if m := update.MyChatMember; m != nil {
		return membershipEvent(m, botID)
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return Event{}, false
	}
	if msg.From.ID == botID {
		return Event{}, false
	}

	ev := Event{
		Kind:        EventMessage,
		ChatID:      msg.Chat.ID,
		ChatName:    msg.Chat.Title,
		UserID:      msg.From.ID,
		Username:    msg.From.UserName,
		DisplayName: msg.From.FirstName,
		MessageID:   int64(msg.MessageID),
		Text:        msg.Text,
		SentAt:      time.Unix(int64(msg.Date), 0).UTC(),
	}

	if r := msg.ReplyToMessage; r != nil && r.From != nil {
		ev.ReplyTo = &Reply{
			From: User{ID: r.From.ID, Username: r.From.UserName, DisplayName: r.From.FirstName},
			Text: r.Text,
		}
	}

	if cmd, args, ok := ParseCommand(msg.Text, botName); ok {
		ev.Kind = EventCommand
		ev.Command = cmd
		ev.Args = args
	}

	return ev, true
}

func membershipEvent(m *tgbotapi.ChatMemberUpdated, botID int64) (Event, bool) {
	if m.NewChatMember.User == nil || m.NewChatMember.User.ID != botID {
		return Event{}, false
	}

	ev := Event{
		ChatID:      m.Chat.ID,
		ChatName:    m.Chat.Title,
		UserID:      m.From.ID,
		Username:    m.From.UserName,
		DisplayName: m.From.FirstName,
		SentAt:      time.Unix(int64(m.Date), 0).UTC(),
	}

	wasIn := isPresent(m.OldChatMember.Status)
	isIn := isPresent(m.NewChatMember.Status)
	switch {
	case isIn && !wasIn:
		ev.Kind = EventBotAdded
	case wasIn && !isIn:
		ev.Kind = EventBotRemoved
	default:
		return Event{}, false
	}
	return ev, true
}

func isPresent(status string) bool {
	switch status {
	case "creator", "administrator", "member", "restricted":
		return true
	}
	return false
}
