package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/moderation"
	"github.com/tullo/wordguard/internal/repository"
)

type ModeratorHandler struct {
	scope      chatScope
	store      *repository.Store
	authorizer *moderation.Authorizer
}

func NewModeratorHandler(store *repository.Store, authorizer *moderation.Authorizer, scope chatScope) *ModeratorHandler {
	return &ModeratorHandler{scope: scope, store: store, authorizer: authorizer}
}

func (h *ModeratorHandler) ListModerators(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	mods, err := h.store.ListModerators(ctx, chatID)
	if err != nil {
		h.scope.storeError(c, "Failed to list moderators", err)
		return
	}
	if mods == nil {
		mods = []models.Moderator{}
	}

	c.JSON(http.StatusOK, mods)
}

// AddModerator grants moderator rights in the chat
func (h *ModeratorHandler) AddModerator(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	var req models.AddModeratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.authorizer.Grant(ctx, chatID, req.UserID, models.NormalizeUsername(req.Username))
	if err != nil {
		h.scope.storeError(c, "Failed to add moderator", err)
		return
	}

	switch result {
	case moderation.GrantSuperAdmin:
		c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "status": "super_admin"})
	case moderation.GrantAlreadyModerator:
		c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "status": "already_moderator"})
	default:
		c.JSON(http.StatusCreated, gin.H{"user_id": req.UserID, "status": "added"})
	}
}

// RemoveModerator revokes the user's grant for the chat. Super admins cannot be removed.
func (h *ModeratorHandler) RemoveModerator(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	result, err := h.authorizer.Revoke(ctx, chatID, userID)
	if err != nil {
		h.scope.storeError(c, "Failed to remove moderator", err)
		return
	}

	switch result {
	case moderation.RevokeSuperAdmin:
		ErrorResponse(c, http.StatusConflict, "User is a super admin")
	case moderation.RevokeNotModerator:
		ErrorResponse(c, http.StatusNotFound, "User is not a moderator")
	default:
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "status": "removed"})
	}
}
