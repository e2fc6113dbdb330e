package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tullo/wordguard/config"
	"github.com/tullo/wordguard/internal/auth"
	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/handlers"
	"github.com/tullo/wordguard/internal/locale"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/moderation"
	"github.com/tullo/wordguard/internal/repository"
	"go.uber.org/zap"
)

const (
	chatID    int64 = -1001
	modID     int64 = 10
	superID   int64 = 1
	outsider  int64 = 99
	otherChat int64 = -2002
)

type testAPI struct {
	router *gin.Engine
	store  *repository.Store
	jwt    *auth.JWTService
	feed   *recordingFeed
}

type feedMessage struct {
	chatID  int64
	message interface{}
}

type recordingFeed struct {
	watchers map[int64]int
	sent     []feedMessage
}

func (f *recordingFeed) Watchers(chatID int64) int {
	return f.watchers[chatID]
}

func (f *recordingFeed) SendToChat(chatID int64, message interface{}) error {
	f.sent = append(f.sent, feedMessage{chatID: chatID, message: message})
	return nil
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(ctx, db, zap.NewNop()))

	store := repository.NewStore(db)
	require.NoError(t, store.EnsureChat(ctx, chatID, "test chat"))
	_, err = store.InsertModeratorGrant(ctx, modID, chatID)
	require.NoError(t, err)
	_, err = store.InsertModeratorGrant(ctx, superID, models.SuperScope)
	require.NoError(t, err)

	bundle, err := locale.Load(locale.Fallback, zap.NewNop())
	require.NoError(t, err)

	jwtService := auth.NewJWTService("test-secret", 1)
	feed := &recordingFeed{watchers: map[int64]int{chatID: 2}}
	r := gin.New()
	handlers.Register(r, handlers.RouterConfig{
		DB:              db,
		Store:           store,
		JWT:             jwtService,
		Authorizer:      moderation.NewAuthorizer(store),
		Aggregator:      moderation.NewAggregator(store),
		Locales:         bundle,
		Feed:            feed,
		DefaultTemplate: config.DefaultTemplate,
		DefaultLocale:   "en",
		StoreTimeout:    time.Second,
		Logger:          zap.NewNop(),
	})

	return &testAPI{router: r, store: store, jwt: jwtService, feed: feed}
}

func (a *testAPI) do(t *testing.T, userID int64, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := a.jwt.GenerateToken(userID, "op")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, 0, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)
}

func TestChatRoutesRequireModerator(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, 0, http.MethodGet, "/api/v1/chats/-1001/words", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, outsider, http.MethodGet, "/api/v1/chats/-1001/words", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error": "Not a moderator of this chat"}`, w.Body.String())

	// a grant for one chat does not cover another
	w = api.do(t, modID, http.MethodGet, "/api/v1/chats/-2002/words", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, superID, http.MethodGet, "/api/v1/chats/-2002/words", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, modID, http.MethodGet, "/api/v1/chats/abc/words", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWordRoutes(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, modID, http.MethodPost, "/api/v1/chats/-1001/words", gin.H{"word": "  SPAM "})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"word": "spam", "added": true}`, w.Body.String())

	w = api.do(t, modID, http.MethodPost, "/api/v1/chats/-1001/words", gin.H{"word": "spam"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"word": "spam", "added": false}`, w.Body.String())

	w = api.do(t, modID, http.MethodPost, "/api/v1/chats/-1001/words", gin.H{"word": "two words"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, word := range []string{"spam!", "f*ck"} {
		w = api.do(t, modID, http.MethodPost, "/api/v1/chats/-1001/words", gin.H{"word": word})
		assert.Equal(t, http.StatusBadRequest, w.Code, word)
	}

	w = api.do(t, modID, http.MethodGet, "/api/v1/chats/-1001/words", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var words []models.BannedWord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &words))
	require.Len(t, words, 1)
	assert.Equal(t, "spam", words[0].Word)
	assert.Equal(t, modID, words[0].BannedBy)

	w = api.do(t, modID, http.MethodDelete, "/api/v1/chats/-1001/words/Spam", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, modID, http.MethodDelete, "/api/v1/chats/-1001/words/spam", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, word := range []string{"a", "b"} {
		api.do(t, modID, http.MethodPost, "/api/v1/chats/-1001/words", gin.H{"word": word})
	}
	w = api.do(t, modID, http.MethodDelete, "/api/v1/chats/-1001/words", nil)
	assert.JSONEq(t, `{"removed": 2}`, w.Body.String())
}

func TestModeratorRoutes(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, modID, http.MethodPost, "/api/v1/chats/-1001/moderators", gin.H{"user_id": 20, "username": "@alice"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = api.do(t, modID, http.MethodPost, "/api/v1/chats/-1001/moderators", gin.H{"user_id": 20})
	assert.JSONEq(t, `{"user_id": 20, "status": "already_moderator"}`, w.Body.String())
	w = api.do(t, modID, http.MethodPost, "/api/v1/chats/-1001/moderators", gin.H{"user_id": superID})
	assert.JSONEq(t, `{"user_id": 1, "status": "super_admin"}`, w.Body.String())

	w = api.do(t, modID, http.MethodGet, "/api/v1/chats/-1001/moderators", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mods []models.Moderator
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mods))
	require.Len(t, mods, 2)
	assert.Equal(t, int64(20), mods[1].UserID)
	assert.Equal(t, "alice", mods[1].Username)

	w = api.do(t, modID, http.MethodDelete, "/api/v1/chats/-1001/moderators/1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = api.do(t, modID, http.MethodDelete, "/api/v1/chats/-1001/moderators/20", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, modID, http.MethodDelete, "/api/v1/chats/-1001/moderators/20", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = api.do(t, modID, http.MethodDelete, "/api/v1/chats/-1001/moderators/x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTemplateRoutes(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, modID, http.MethodGet, "/api/v1/chats/-1001/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"templates":[]`)

	for _, text := range []string{"one {name}", "two {word}", "three"} {
		w = api.do(t, modID, http.MethodPost, "/api/v1/chats/-1001/templates", gin.H{"text": text})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = api.do(t, modID, http.MethodPost, "/api/v1/chats/-1001/templates", gin.H{"text": "broken {name"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, modID, http.MethodDelete, "/api/v1/chats/-1001/templates/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = api.do(t, modID, http.MethodDelete, "/api/v1/chats/-1001/templates/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = api.do(t, modID, http.MethodDelete, "/api/v1/chats/-1001/templates/first", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	templates, err := api.store.Templates(context.Background(), chatID)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, 1, templates[0].TemplateID)
	assert.Equal(t, "two {word}", templates[0].Text)
	assert.Equal(t, 2, templates[1].TemplateID)
}

func TestSettingsRoutes(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, modID, http.MethodGet, "/api/v1/chats/-1001/settings", nil)
	assert.JSONEq(t, `{"delete_messages": false, "locale": "en", "watchers": 2}`, w.Body.String())
	assert.Empty(t, api.feed.sent)

	w = api.do(t, modID, http.MethodPut, "/api/v1/chats/-1001/settings", gin.H{"delete_messages": true, "locale": "uk"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"delete_messages": true, "locale": "uk", "watchers": 2}`, w.Body.String())

	require.Len(t, api.feed.sent, 1)
	assert.Equal(t, chatID, api.feed.sent[0].chatID)
	msg, ok := api.feed.sent[0].message.(models.WSMessage)
	require.True(t, ok)
	assert.Equal(t, models.EventSettingsUpdated, msg.Event)
	assert.Equal(t, &models.ChatSettings{DeleteMessages: true, Locale: "uk", Watchers: 2}, msg.Payload)

	w = api.do(t, modID, http.MethodPut, "/api/v1/chats/-1001/settings", gin.H{"locale": "xx"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, api.feed.sent, 1)

	w = api.do(t, modID, http.MethodPut, "/api/v1/chats/-1001/settings", gin.H{"delete_messages": false})
	assert.JSONEq(t, `{"delete_messages": false, "locale": "uk", "watchers": 2}`, w.Body.String())
}

func TestStatisticsAndViolations(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	logs := []models.ViolationLog{
		{ChatID: chatID, UserID: 5, Username: "bob", MessageID: 1, Text: "spam", CreatedAt: day, Words: models.WordList{"spam"}},
		{ChatID: chatID, UserID: 6, Username: "eve", MessageID: 2, Text: "spam junk", CreatedAt: day.Add(time.Hour), Words: models.WordList{"spam", "junk"}},
		{ChatID: chatID, UserID: 5, Username: "bob", MessageID: 3, Text: "junk", CreatedAt: day.AddDate(0, 0, 1), Words: models.WordList{"junk"}},
	}
	for i := range logs {
		require.NoError(t, api.store.AppendViolationLog(ctx, &logs[i]))
	}

	w := api.do(t, modID, http.MethodGet, "/api/v1/chats/-1001/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats moderation.Statistics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Len(t, stats.Users, 2)
	assert.Equal(t, moderation.UserCount{UserID: 5, Username: "bob", Count: 2}, stats.Users[0])
	require.NotNil(t, stats.Worst)
	assert.Equal(t, int64(2), stats.Worst.MessageID)

	w = api.do(t, modID, http.MethodGet, "/api/v1/chats/-1001/statistics?date=2024-03-02", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Len(t, stats.Users, 1)
	assert.Equal(t, int64(3), stats.Worst.MessageID)

	w = api.do(t, modID, http.MethodGet, "/api/v1/chats/-1001/statistics?date=03/01/2024", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, modID, http.MethodGet, "/api/v1/chats/-1001/violations?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []models.ViolationLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].MessageID)
	assert.Equal(t, int64(3), got[1].MessageID)
}

func TestAuthMe(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, modID, http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":10`)
	assert.Contains(t, w.Body.String(), `"username":"op"`)

	require.NoError(t, api.store.UpsertUser(context.Background(), modID, "moddy"))
	w = api.do(t, modID, http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"moddy"`)
	assert.Contains(t, w.Body.String(), `"chat_id":-1001`)

	w = api.do(t, modID, http.MethodPost, "/api/v1/auth/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	claims, err := api.jwt.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, modID, claims.UserID)
}
