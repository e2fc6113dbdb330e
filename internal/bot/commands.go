package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tullo/wordguard/internal/moderation"
)

const (
	dateLayout   = "2006-01-02"
	messageLimit = 10
)

type commandFunc func(ctx context.Context, ev Event, lang string) (string, error)

// commandOrder is the order commands are listed in /help.
var commandOrder = []string{"word", "mod", "template", "locale", "messages", "delete", "statistics", "help"}

func (b *Bot) commandTable() map[string]commandFunc {
	return map[string]commandFunc{
		"word":       b.cmdWord,
		"mod":        b.cmdMod,
		"template":   b.cmdTemplate,
		"locale":     b.cmdLocale,
		"messages":   b.cmdMessages,
		"delete":     b.cmdDelete,
		"statistics": b.cmdStatistics,
		"help":       b.cmdHelp,
	}
}

func subcommand(ev Event) string {
	if len(ev.Args) == 0 {
		return ""
	}
	return strings.ToLower(ev.Args[0])
}

func (b *Bot) t(lang, key string, args map[string]string) string {
	return b.locales.T(lang, key, args)
}

func (b *Bot) cmdWord(ctx context.Context, ev Event, lang string) (string, error) {
	sub := subcommand(ev)
	switch sub {
	case "ban", "unban":
		words := uniqueWords(ev.Args[1:])
		if len(words) == 0 {
			return "", moderation.NewValidationError("word.usage", "no words given")
		}
		if sub == "ban" {
			var rejected []string
			for _, w := range words {
				if !moderation.Matchable(w) {
					rejected = append(rejected, w)
				}
			}
			if len(rejected) > 0 {
				return "", moderation.NewValidationErrorArgs("word.unmatchable", "word is not a single token",
					map[string]string{"words": strings.Join(rejected, ", ")})
			}
		}
		if err := b.require(ctx, ev); err != nil {
			return "", err
		}
		if sub == "ban" {
			if err := b.store.EnsureChat(ctx, ev.ChatID, ev.ChatName); err != nil {
				return "", err
			}
			return b.banWords(ctx, ev, lang, words)
		}
		return b.unbanWords(ctx, ev, lang, words)

	case "list":
		if err := b.require(ctx, ev); err != nil {
			return "", err
		}
		words, err := b.store.BannedWords(ctx, ev.ChatID)
		if err != nil {
			return "", err
		}
		if len(words) == 0 {
			return b.t(lang, "word.list_empty", nil), nil
		}
		return b.t(lang, "word.list", map[string]string{"words": bulleted(words)}), nil

	case "clear":
		if err := b.require(ctx, ev); err != nil {
			return "", err
		}
		n, err := b.store.ClearBannedWords(ctx, ev.ChatID)
		if err != nil {
			return "", err
		}
		return b.t(lang, "word.cleared", map[string]string{"count": strconv.FormatInt(n, 10)}), nil
	}

	return "", moderation.NewValidationError("word.usage", "unknown subcommand")
}

func (b *Bot) banWords(ctx context.Context, ev Event, lang string, words []string) (string, error) {
	var added, already []string
	for _, w := range words {
		ok, err := b.store.AddBannedWord(ctx, ev.ChatID, w, ev.UserID)
		if err != nil {
			return "", err
		}
		if ok {
			added = append(added, w)
		} else {
			already = append(already, w)
		}
	}

	var lines []string
	if len(added) > 0 {
		lines = append(lines, b.t(lang, "word.banned", map[string]string{"words": strings.Join(added, moderation.WordSeparator)}))
	}
	if len(already) > 0 {
		lines = append(lines, b.t(lang, "word.already_banned", map[string]string{"words": strings.Join(already, moderation.WordSeparator)}))
	}
	return strings.Join(lines, "\n"), nil
}

func (b *Bot) unbanWords(ctx context.Context, ev Event, lang string, words []string) (string, error) {
	var removed, missing []string
	for _, w := range words {
		ok, err := b.store.RemoveBannedWord(ctx, ev.ChatID, w)
		if err != nil {
			return "", err
		}
		if ok {
			removed = append(removed, w)
		} else {
			missing = append(missing, w)
		}
	}

	var lines []string
	if len(removed) > 0 {
		lines = append(lines, b.t(lang, "word.unbanned", map[string]string{"words": strings.Join(removed, moderation.WordSeparator)}))
	}
	if len(missing) > 0 {
		lines = append(lines, b.t(lang, "word.not_banned", map[string]string{"words": strings.Join(missing, moderation.WordSeparator)}))
	}
	return strings.Join(lines, "\n"), nil
}

func (b *Bot) cmdMod(ctx context.Context, ev Event, lang string) (string, error) {
	sub := subcommand(ev)
	switch sub {
	case "list":
		if err := b.require(ctx, ev); err != nil {
			return "", err
		}
		mods, err := b.store.ListModerators(ctx, ev.ChatID)
		if err != nil {
			return "", err
		}
		if len(mods) == 0 {
			return b.t(lang, "mod.list_empty", nil), nil
		}
		items := make([]string, 0, len(mods))
		for _, m := range mods {
			u := User{ID: m.UserID, Username: m.Username}
			items = append(items, b.t(lang, "mod.list_item", map[string]string{"user": u.Name(), "id": formatID(m.UserID)}))
		}
		return b.t(lang, "mod.list", map[string]string{"moderators": strings.Join(items, "\n")}), nil

	case "add", "delete":
		if len(ev.Args) < 2 && ev.ReplyTo == nil {
			return "", moderation.NewValidationError("mod.usage", "no target user")
		}
		if err := b.require(ctx, ev); err != nil {
			return "", err
		}

		target, err := b.resolveTarget(ctx, ev)
		if errors.Is(err, ErrUserNotFound) {
			return b.t(lang, "mod.user_not_found", map[string]string{"user": ev.Args[1]}), nil
		}
		if err != nil {
			return "", err
		}
		args := map[string]string{"user": target.Name()}

		if sub == "add" {
			result, err := b.authorizer.Grant(ctx, ev.ChatID, target.ID, target.Username)
			if err != nil {
				return "", err
			}
			switch result {
			case moderation.GrantSuperAdmin:
				return b.t(lang, "mod.super_admin", args), nil
			case moderation.GrantAlreadyModerator:
				return b.t(lang, "mod.already", args), nil
			}
			return b.t(lang, "mod.added", args), nil
		}

		result, err := b.authorizer.Revoke(ctx, ev.ChatID, target.ID)
		if err != nil {
			return "", err
		}
		switch result {
		case moderation.RevokeSuperAdmin:
			return b.t(lang, "mod.super_admin", args), nil
		case moderation.RevokeNotModerator:
			return b.t(lang, "mod.not_moderator", args), nil
		}
		return b.t(lang, "mod.removed", args), nil
	}

	return "", moderation.NewValidationError("mod.usage", "unknown subcommand")
}

// resolveTarget picks the user a /mod command is about: an explicit argument
// wins over the replied-to message.
func (b *Bot) resolveTarget(ctx context.Context, ev Event) (User, error) {
	if len(ev.Args) >= 2 {
		id, username, err := b.transport.ResolveUser(ctx, ev.ChatID, ev.Args[1])
		if err != nil {
			return User{}, err
		}
		return User{ID: id, Username: username}, nil
	}
	return ev.ReplyTo.From, nil
}

func (b *Bot) cmdTemplate(ctx context.Context, ev Event, lang string) (string, error) {
	switch subcommand(ev) {
	case "add":
		text := CommandText(ev.Text, 2)
		if text == "" && ev.ReplyTo != nil {
			text = strings.TrimSpace(ev.ReplyTo.Text)
		}
		if err := moderation.ValidateTemplate(text); err != nil {
			return "", err
		}
		if err := b.require(ctx, ev); err != nil {
			return "", err
		}
		if err := b.store.EnsureChat(ctx, ev.ChatID, ev.ChatName); err != nil {
			return "", err
		}
		id, err := b.store.AddTemplate(ctx, ev.ChatID, text)
		if err != nil {
			return "", err
		}
		return b.t(lang, "template.add.added", map[string]string{"id": strconv.Itoa(id)}), nil

	case "delete":
		if len(ev.Args) < 2 {
			return "", moderation.NewValidationError("template.delete.usage", "missing id")
		}
		id, err := strconv.Atoi(ev.Args[1])
		if err != nil {
			return "", moderation.NewValidationError("template.delete.usage", "id is not a number")
		}
		if err := b.require(ctx, ev); err != nil {
			return "", err
		}
		removed, err := b.store.RemoveTemplate(ctx, ev.ChatID, id)
		if err != nil {
			return "", err
		}
		args := map[string]string{"id": ev.Args[1]}
		if !removed {
			return b.t(lang, "template.delete.not_found", args), nil
		}
		return b.t(lang, "template.delete.deleted", args), nil

	case "list":
		if err := b.require(ctx, ev); err != nil {
			return "", err
		}
		templates, err := b.store.Templates(ctx, ev.ChatID)
		if err != nil {
			return "", err
		}
		if len(templates) == 0 {
			return b.t(lang, "template.list_empty", map[string]string{"default": b.cfg.DefaultTemplate}), nil
		}
		items := make([]string, 0, len(templates))
		for _, tpl := range templates {
			items = append(items, b.t(lang, "template.list_item", map[string]string{
				"id":   strconv.Itoa(tpl.TemplateID),
				"text": tpl.Text,
			}))
		}
		return b.t(lang, "template.list", map[string]string{"templates": strings.Join(items, "\n")}), nil
	}

	return "", moderation.NewValidationError("template.usage", "unknown subcommand")
}

func (b *Bot) cmdLocale(ctx context.Context, ev Event, lang string) (string, error) {
	available := strings.Join(b.locales.Locales(), ", ")

	switch subcommand(ev) {
	case "list":
		return b.t(lang, "locale.list", map[string]string{"locales": available}), nil
	case "current":
		return b.t(lang, "locale.current", map[string]string{"locale": lang}), nil
	case "set":
		if len(ev.Args) < 2 {
			return "", moderation.NewValidationError("locale.usage", "missing locale")
		}
		if err := b.require(ctx, ev); err != nil {
			return "", err
		}
		code := strings.ToLower(ev.Args[1])
		if !b.locales.Has(code) {
			return b.t(lang, "locale.unknown", map[string]string{"locale": code, "locales": available}), nil
		}
		if err := b.store.EnsureChat(ctx, ev.ChatID, ev.ChatName); err != nil {
			return "", err
		}
		if _, err := b.store.SetLocale(ctx, ev.ChatID, code); err != nil {
			return "", err
		}
		return b.t(code, "locale.set", map[string]string{"locale": code}), nil
	}

	return "", moderation.NewValidationError("locale.usage", "unknown subcommand")
}

func (b *Bot) cmdMessages(ctx context.Context, ev Event, lang string) (string, error) {
	day, err := parseDayArg(ev.Args, "messages.usage")
	if err != nil {
		return "", err
	}
	if err := b.require(ctx, ev); err != nil {
		return "", err
	}

	logs, err := b.store.ViolationLogs(ctx, ev.ChatID, day, messageLimit)
	if err != nil {
		return "", err
	}
	if len(logs) == 0 {
		return b.t(lang, "messages.empty", nil), nil
	}

	header := b.t(lang, "messages.header", nil)
	if day != nil {
		header = b.t(lang, "messages.header_date", map[string]string{"date": day.Format(dateLayout)})
	}
	lines := []string{header}
	for _, l := range logs {
		u := User{ID: l.UserID, Username: l.Username}
		lines = append(lines, b.t(lang, "messages.item", map[string]string{
			"time":  l.CreatedAt.UTC().Format("2006-01-02 15:04"),
			"user":  u.Name(),
			"text":  l.Text,
			"words": strings.Join(l.Words, moderation.WordSeparator),
		}))
	}
	return strings.Join(lines, "\n"), nil
}

func (b *Bot) cmdDelete(ctx context.Context, ev Event, lang string) (string, error) {
	sub := subcommand(ev)
	if sub != "" && sub != "on" && sub != "off" {
		return "", moderation.NewValidationError("delete.usage", "expected on or off")
	}
	if err := b.require(ctx, ev); err != nil {
		return "", err
	}

	if sub == "" {
		enabled, err := b.store.DeletionFlag(ctx, ev.ChatID)
		if err != nil {
			return "", err
		}
		if enabled {
			return b.t(lang, "delete.status_on", nil), nil
		}
		return b.t(lang, "delete.status_off", nil), nil
	}

	enabled := sub == "on"
	if err := b.store.SetDeletionFlag(ctx, ev.ChatID, enabled); err != nil {
		return "", err
	}
	if enabled {
		return b.t(lang, "delete.enabled", nil), nil
	}
	return b.t(lang, "delete.disabled", nil), nil
}

func (b *Bot) cmdStatistics(ctx context.Context, ev Event, lang string) (string, error) {
	day, err := parseDayArg(ev.Args, "statistics.usage")
	if err != nil {
		return "", err
	}
	if err := b.require(ctx, ev); err != nil {
		return "", err
	}

	stats, err := b.aggregator.Aggregate(ctx, ev.ChatID, day)
	if err != nil {
		return "", err
	}
	if stats.Empty() {
		return b.t(lang, "statistics.empty", nil), nil
	}
	return b.formatStatistics(lang, stats), nil
}

func (b *Bot) formatStatistics(lang string, stats *moderation.Statistics) string {
	date := b.t(lang, "statistics.all_time", nil)
	if stats.Day != nil {
		date = stats.Day.Format(dateLayout)
	}

	users := []string{b.t(lang, "statistics.users_header", nil)}
	for i, u := range stats.Users {
		users = append(users, b.t(lang, "statistics.users_item", map[string]string{
			"id":    strconv.Itoa(i + 1),
			"user":  u.Username,
			"count": strconv.Itoa(u.Count),
		}))
	}

	words := []string{b.t(lang, "statistics.words_header", nil)}
	for i, w := range stats.Words {
		words = append(words, b.t(lang, "statistics.words_item", map[string]string{
			"id":    strconv.Itoa(i + 1),
			"word":  w.Word,
			"count": strconv.Itoa(w.Count),
		}))
	}

	return b.t(lang, "statistics.format", map[string]string{
		"header":      b.t(lang, "statistics.header", map[string]string{"date": date}),
		"users":       strings.Join(users, "\n"),
		"words":       strings.Join(words, "\n"),
		"most_banned": b.t(lang, "statistics.most_banned", map[string]string{"message": stats.Worst.Text}),
	})
}

func (b *Bot) cmdHelp(_ context.Context, ev Event, lang string) (string, error) {
	if len(ev.Args) == 0 {
		lines := []string{b.t(lang, "help.header", nil)}
		for _, name := range commandOrder {
			lines = append(lines, b.t(lang, "help.help_short."+name, nil))
		}
		lines = append(lines, "", b.t(lang, "help.footer", nil))
		return strings.Join(lines, "\n"), nil
	}

	name := strings.ToLower(strings.TrimPrefix(ev.Args[0], "/"))
	key := "help.help_texts." + name
	if !b.locales.HasKey(b.locales.Fallback(), key) {
		return b.t(lang, "help.unknown", map[string]string{"command": name}), nil
	}
	return b.t(lang, key, nil), nil
}

// parseDayArg parses an optional YYYY-MM-DD argument as a UTC day.
func parseDayArg(args []string, usageKey string) (*time.Time, error) {
	if len(args) == 0 {
		return nil, nil
	}
	day, err := time.ParseInLocation(dateLayout, args[0], time.UTC)
	if err != nil {
		return nil, moderation.NewValidationError(usageKey, err.Error())
	}
	return &day, nil
}

// uniqueWords folds the arguments and drops empties and duplicates, keeping order.
func uniqueWords(args []string) []string {
	seen := make(map[string]struct{}, len(args))
	words := make([]string, 0, len(args))
	for _, a := range args {
		w := moderation.NormalizeWord(a)
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words
}

func bulleted(items []string) string {
	return "- " + strings.Join(items, "\n- ")
}
