package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tullo/wordguard/internal/locale"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/repository"
	"go.uber.org/zap"
)

// Feed is the live violation feed as seen by the operator API.
type Feed interface {
	Watchers(chatID int64) int
	SendToChat(chatID int64, message interface{}) error
}

type SettingsHandler struct {
	scope         chatScope
	store         *repository.Store
	locales       *locale.Bundle
	defaultLocale string
	feed          Feed
}

// NewSettingsHandler creates the settings handler. feed may be nil.
func NewSettingsHandler(store *repository.Store, locales *locale.Bundle, defaultLocale string, feed Feed, scope chatScope) *SettingsHandler {
	return &SettingsHandler{scope: scope, store: store, locales: locales, defaultLocale: defaultLocale, feed: feed}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	settings, err := h.load(ctx, chatID)
	if err != nil {
		h.scope.storeError(c, "Failed to load settings", err)
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings changes the deletion flag and/or the chat locale
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Locale != nil && !h.locales.Has(*req.Locale) {
		ErrorResponse(c, http.StatusBadRequest, "Unknown locale")
		return
	}

	if err := h.store.EnsureChat(ctx, chatID, ""); err != nil {
		h.scope.storeError(c, "Failed to update settings", err)
		return
	}
	if req.DeleteMessages != nil {
		if err := h.store.SetDeletionFlag(ctx, chatID, *req.DeleteMessages); err != nil {
			h.scope.storeError(c, "Failed to update settings", err)
			return
		}
	}
	if req.Locale != nil {
		if _, err := h.store.SetLocale(ctx, chatID, *req.Locale); err != nil {
			h.scope.storeError(c, "Failed to update settings", err)
			return
		}
	}

	settings, err := h.load(ctx, chatID)
	if err != nil {
		h.scope.storeError(c, "Failed to load settings", err)
		return
	}

	if h.feed != nil {
		msg := models.WSMessage{Event: models.EventSettingsUpdated, Payload: settings}
		if err := h.feed.SendToChat(chatID, msg); err != nil {
			h.scope.logger.Warn("Failed to notify feed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, settings)
}

func (h *SettingsHandler) load(ctx context.Context, chatID int64) (*models.ChatSettings, error) {
	deleteMessages, err := h.store.DeletionFlag(ctx, chatID)
	if err != nil {
		return nil, err
	}
	code, err := h.store.Locale(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if code == "" {
		code = h.defaultLocale
	}
	settings := &models.ChatSettings{DeleteMessages: deleteMessages, Locale: code}
	if h.feed != nil {
		settings.Watchers = h.feed.Watchers(chatID)
	}
	return settings, nil
}
