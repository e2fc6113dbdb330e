package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tullo/wordguard/internal/middleware"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/moderation"
	"github.com/tullo/wordguard/internal/repository"
)

type WordHandler struct {
	scope chatScope
	store *repository.Store
}

func NewWordHandler(store *repository.Store, scope chatScope) *WordHandler {
	return &WordHandler{scope: scope, store: store}
}

// ListWords returns the chat's banned words in insertion order
func (h *WordHandler) ListWords(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	words, err := h.store.BannedWordRows(ctx, chatID)
	if err != nil {
		h.scope.storeError(c, "Failed to list banned words", err)
		return
	}
	if words == nil {
		words = []models.BannedWord{}
	}

	c.JSON(http.StatusOK, words)
}

// BanWord adds a word to the chat's list
func (h *WordHandler) BanWord(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	var req models.BanWordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	word := moderation.NormalizeWord(req.Word)
	if word == "" || strings.ContainsAny(word, " \t\r\n") {
		ErrorResponse(c, http.StatusBadRequest, "A single word is required")
		return
	}
	if !moderation.Matchable(word) {
		ErrorResponse(c, http.StatusBadRequest, "Words may only contain letters, digits, _ and '")
		return
	}

	uid, _ := middleware.UserID(c)
	if err := h.store.EnsureChat(ctx, chatID, ""); err != nil {
		h.scope.storeError(c, "Failed to ban word", err)
		return
	}
	added, err := h.store.AddBannedWord(ctx, chatID, word, uid)
	if err != nil {
		h.scope.storeError(c, "Failed to ban word", err)
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"word": word, "added": added})
}

// UnbanWord removes a word from the chat's list
func (h *WordHandler) UnbanWord(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	word := moderation.NormalizeWord(c.Param("word"))
	removed, err := h.store.RemoveBannedWord(ctx, chatID, word)
	if err != nil {
		h.scope.storeError(c, "Failed to unban word", err)
		return
	}
	if !removed {
		ErrorResponse(c, http.StatusNotFound, "Word is not banned")
		return
	}

	c.JSON(http.StatusOK, gin.H{"word": word, "removed": true})
}

// ClearWords removes every banned word of the chat
func (h *WordHandler) ClearWords(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	n, err := h.store.ClearBannedWords(ctx, chatID)
	if err != nil {
		h.scope.storeError(c, "Failed to clear banned words", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": n})
}
