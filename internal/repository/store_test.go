package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/repository"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*repository.Store, *database.DB) {
	t.Helper()
	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(context.Background(), db, zap.NewNop()))
	return repository.NewStore(db), db
}

func TestBannedWords(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t)

	added, err := store.AddBannedWord(ctx, 100, "spam", 1)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AddBannedWord(ctx, 100, "spam", 2)
	require.NoError(t, err)
	assert.False(t, added, "second ban of the same word")

	var rows int
	require.NoError(t, db.Get(&rows, "SELECT COUNT(*) FROM banned_words WHERE chat_id = 100 AND word = 'spam'"))
	assert.Equal(t, 1, rows)

	for _, w := range []string{"junk", "eggs"} {
		_, err := store.AddBannedWord(ctx, 100, w, 1)
		require.NoError(t, err)
	}
	_, err = store.AddBannedWord(ctx, 200, "other", 1)
	require.NoError(t, err)

	words, err := store.BannedWords(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"spam", "junk", "eggs"}, words)

	removed, err := store.RemoveBannedWord(ctx, 100, "junk")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.RemoveBannedWord(ctx, 100, "junk")
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := store.ClearBannedWords(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	words, err = store.BannedWords(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, words)

	words, err = store.BannedWords(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, words)
}

func TestModeratorGrants(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	has, err := store.HasModerators(ctx, 100)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, store.UpsertUser(ctx, 7, "alice"))
	inserted, err := store.InsertModeratorGrant(ctx, 7, 100)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertModeratorGrant(ctx, 7, 100)
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = store.InsertModeratorGrant(ctx, 7, models.SuperScope)
	require.NoError(t, err)

	grants, err := store.ModeratorGrants(ctx, 7)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.True(t, grants[0].IsSuper())
	assert.Equal(t, int64(100), grants[1].ChatID)

	require.NoError(t, store.UpsertUser(ctx, 7, "alice_renamed"))
	user, err := store.User(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "alice_renamed", user.Username)
	_, err = store.User(ctx, 8)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.Error(t, store.UpsertUser(ctx, 0, "nobody"))
	mods, err := store.ListModerators(ctx, 100)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "alice_renamed", mods[0].Username)

	has, err = store.HasModerators(ctx, 100)
	require.NoError(t, err)
	assert.True(t, has)

	deleted, err := store.DeleteModeratorGrant(ctx, 7, 100)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteModeratorGrant(ctx, 7, 100)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func templateIDs(t *testing.T, store *repository.Store, chatID int64) ([]int, []string) {
	t.Helper()
	templates, err := store.Templates(context.Background(), chatID)
	require.NoError(t, err)
	var ids []int
	var texts []string
	for _, tpl := range templates {
		ids = append(ids, tpl.TemplateID)
		texts = append(texts, tpl.Text)
	}
	return ids, texts
}

func TestTemplatesRenumberOnRemove(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	for i, text := range []string{"one {name}", "two {word}", "three"} {
		id, err := store.AddTemplate(ctx, 100, text)
		require.NoError(t, err)
		assert.Equal(t, i+1, id)
	}
	id, err := store.AddTemplate(ctx, 200, "other chat")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	removed, err := store.RemoveTemplate(ctx, 100, 2)
	require.NoError(t, err)
	assert.True(t, removed)

	ids, texts := templateIDs(t, store, 100)
	assert.Equal(t, []int{1, 2}, ids)
	assert.Equal(t, []string{"one {name}", "three"}, texts)

	removed, err = store.RemoveTemplate(ctx, 100, 9)
	require.NoError(t, err)
	assert.False(t, removed)

	id, err = store.AddTemplate(ctx, 100, "four")
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	removed, err = store.RemoveTemplate(ctx, 100, 1)
	require.NoError(t, err)
	assert.True(t, removed)
	ids, texts = templateIDs(t, store, 100)
	assert.Equal(t, []int{1, 2}, ids)
	assert.Equal(t, []string{"three", "four"}, texts)

	require.NoError(t, store.RenumberTemplates(ctx, 100))
	ids, _ = templateIDs(t, store, 100)
	assert.Equal(t, []int{1, 2}, ids)
}

func TestViolationLogs(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t)

	day1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 23, 59, 0, 0, time.UTC)

	entries := []*models.ViolationLog{
		{ChatID: 100, UserID: 1, Username: "bob", MessageID: 11, Text: "spam", CreatedAt: day1, Words: models.WordList{"spam"}},
		{ChatID: 100, UserID: 2, Username: "eve", MessageID: 12, Text: "hello", CreatedAt: day1.Add(time.Hour)},
		{ChatID: 100, UserID: 1, Username: "bob", MessageID: 13, Text: "spam junk", CreatedAt: day2, Words: models.WordList{"spam", "junk"}},
		{ChatID: 200, UserID: 3, Username: "mal", MessageID: 14, Text: "junk", CreatedAt: day2, Words: models.WordList{"junk"}},
	}
	for _, e := range entries {
		require.NoError(t, store.AppendViolationLog(ctx, e))
		assert.NotZero(t, e.ID)
	}

	var nulls int
	require.NoError(t, db.Get(&nulls, "SELECT COUNT(*) FROM violation_logs WHERE words IS NULL"))
	assert.Equal(t, 1, nulls)

	all, err := store.ViolationLogs(ctx, 100, nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.WordList{"spam", "junk"}, all[2].Words)
	assert.Nil(t, all[1].Words)
	assert.True(t, all[0].CreatedAt.Equal(day1))

	onDay, err := store.ViolationLogs(ctx, 100, &day2, 0)
	require.NoError(t, err)
	require.Len(t, onDay, 1)
	assert.Equal(t, int64(13), onDay[0].MessageID)

	// a non-UTC day selects the same UTC calendar day
	local := day1.In(time.FixedZone("UTC+2", 2*3600))
	onDay, err = store.ViolationLogs(ctx, 100, &local, 0)
	require.NoError(t, err)
	assert.Len(t, onDay, 2)

	latest, err := store.ViolationLogs(ctx, 100, nil, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, int64(12), latest[0].MessageID)
	assert.Equal(t, int64(13), latest[1].MessageID)

	everything, err := store.AllViolationLogs(ctx)
	require.NoError(t, err)
	assert.Len(t, everything, 4)
}

func TestDayBounds(t *testing.T) {
	start, end := repository.DayBounds(time.Date(2024, 12, 31, 18, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestChatSettings(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	enabled, err := store.DeletionFlag(ctx, 100)
	require.NoError(t, err)
	assert.False(t, enabled)

	ok, err := store.SetLocale(ctx, 100, "uk")
	require.NoError(t, err)
	assert.False(t, ok, "unknown chat")

	require.NoError(t, store.EnsureChat(ctx, 100, "Group"))
	require.NoError(t, store.EnsureChat(ctx, 100, ""))
	chat, err := store.Chat(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Group", chat.Name)
	assert.Nil(t, chat.Locale)

	code, err := store.Locale(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, code)

	ok, err = store.SetLocale(ctx, 100, "uk")
	require.NoError(t, err)
	assert.True(t, ok)
	code, err = store.Locale(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "uk", code)

	require.NoError(t, store.SetDeletionFlag(ctx, 100, true))
	enabled, err = store.DeletionFlag(ctx, 100)
	require.NoError(t, err)
	assert.True(t, enabled)

	// setting the flag creates unknown chats
	require.NoError(t, store.SetDeletionFlag(ctx, 300, true))
	enabled, err = store.DeletionFlag(ctx, 300)
	require.NoError(t, err)
	assert.True(t, enabled)

	_, err = store.Chat(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrChatNotFound)
}

func TestDeleteChatCascade(t *testing.T) {
	ctx := context.Background()
	store, db := newTestStore(t)

	for _, chatID := range []int64{100, 200} {
		require.NoError(t, store.EnsureChat(ctx, chatID, "chat"))
		_, err := store.AddBannedWord(ctx, chatID, "spam", 1)
		require.NoError(t, err)
		_, err = store.AddTemplate(ctx, chatID, "hi {name}")
		require.NoError(t, err)
		_, err = store.InsertModeratorGrant(ctx, 1, chatID)
		require.NoError(t, err)
		require.NoError(t, store.AppendViolationLog(ctx, &models.ViolationLog{
			ChatID: chatID, UserID: 2, MessageID: 1, Text: "spam", Words: models.WordList{"spam"},
		}))
	}
	_, err := store.InsertModeratorGrant(ctx, 9, models.SuperScope)
	require.NoError(t, err)

	require.NoError(t, store.DeleteChatCascade(ctx, 100))

	tables := map[string]string{
		"violation_logs":    "chat_id",
		"message_templates": "chat_id",
		"banned_words":      "chat_id",
		"moderators":        "chat_id",
		"chats":             "id",
	}
	for table, column := range tables {
		var gone, kept int
		require.NoError(t, db.Get(&gone, "SELECT COUNT(*) FROM "+table+" WHERE "+column+" = 100"))
		require.NoError(t, db.Get(&kept, "SELECT COUNT(*) FROM "+table+" WHERE "+column+" = 200"))
		assert.Zero(t, gone, table)
		assert.Equal(t, 1, kept, table)
	}

	grants, err := store.ModeratorGrants(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, grants, 1, "super grant survives")

	assert.Error(t, store.DeleteChatCascade(ctx, models.SuperScope))
}
