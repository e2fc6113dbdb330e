package bot

import (
	"strings"
	"time"
)

// EventKind classifies an inbound update.
type EventKind int

const (
	EventMessage EventKind = iota
	EventCommand
	EventBotAdded
	EventBotRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventCommand:
		return "command"
	case EventBotAdded:
		return "bot_added"
	case EventBotRemoved:
		return "bot_removed"
	default:
		return "unknown"
	}
}

// User is the author of a message someone replied to.
type User struct {
	ID          int64
	Username    string
	DisplayName string
}

// Name returns how the user is addressed in replies.
func (u *User) Name() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.DisplayName != "":
		return u.DisplayName
	default:
		return formatID(u.ID)
	}
}

// Reply is the message a command was sent in reply to.
type Reply struct {
	From User
	Text string
}

// Event is a platform-neutral inbound update. For EventBotAdded the user fields
// describe who added the bot.
type Event struct {
	Kind        EventKind
	ChatID      int64
	ChatName    string
	UserID      int64
	Username    string
	DisplayName string
	MessageID   int64
	Text        string
	SentAt      time.Time
	ReplyTo     *Reply
	Command     string
	Args        []string
}

// Sender returns the author of the event.
func (e *Event) Sender() User {
	return User{ID: e.UserID, Username: e.Username, DisplayName: e.DisplayName}
}

// ParseCommand splits "/cmd@bot arg1 arg2" into its command and arguments. A
// command addressed to a different bot is not ours. botName may be empty.
func ParseCommand(text, botName string) (string, []string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}

	cmd := strings.TrimPrefix(fields[0], "/")
	if name, target, found := strings.Cut(cmd, "@"); found {
		if botName != "" && !strings.EqualFold(target, botName) {
			return "", nil, false
		}
		cmd = name
	}
	if cmd == "" {
		return "", nil, false
	}

	return strings.ToLower(cmd), fields[1:], true
}

// CommandText returns the raw text following the first n words of a command,
// preserving inner whitespace.
func CommandText(text string, n int) string {
	rest := strings.TrimSpace(text)
	for i := 0; i < n; i++ {
		idx := strings.IndexFunc(rest, isSpace)
		if idx < 0 {
			return ""
		}
		rest = strings.TrimLeftFunc(rest[idx:], isSpace)
	}
	return rest
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
