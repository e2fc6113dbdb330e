package bot

import (
	"context"
	"errors"
	"strconv"
)

// ErrUserNotFound is returned by ResolveUser when the reference matches nobody in the chat.
var ErrUserNotFound = errors.New("user not found")

// Transport is the messaging platform as seen by the bot.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	// ResolveUser maps a numeric id or an @username to a chat member.
	ResolveUser(ctx context.Context, chatID int64, ref string) (int64, string, error)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
