package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tullo/wordguard/internal/auth"
	"github.com/tullo/wordguard/internal/middleware"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/repository"
	"go.uber.org/zap"
)

// AuthHandler serves the operator's own identity. Tokens are issued out of band
// by the admin CLI.
type AuthHandler struct {
	store      *repository.Store
	jwtService *auth.JWTService
	timeout    time.Duration
	logger     *zap.Logger
}

func NewAuthHandler(store *repository.Store, jwtService *auth.JWTService, timeout time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{store: store, jwtService: jwtService, timeout: timeout, logger: logger}
}

type meResponse struct {
	UserID   int64                   `json:"user_id"`
	Username string                  `json:"username"`
	Grants   []models.ModeratorGrant `json:"grants"`
}

// GetMe returns the current operator and the chats they moderate
func (h *AuthHandler) GetMe(c *gin.Context) {
	uid, _ := middleware.UserID(c)
	username := c.GetString(middleware.ContextUsername)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	// The bot keeps usernames fresh, the token may carry a stale one.
	user, err := h.store.User(ctx, uid)
	switch {
	case err == nil:
		username = user.Username
	case !errors.Is(err, repository.ErrUserNotFound):
		h.logger.Warn("Failed to read user", zap.Int64("user_id", uid), zap.Error(err))
	}

	grants, err := h.store.ModeratorGrants(ctx, uid)
	if err != nil {
		h.logger.Error("Failed to read grants", zap.Int64("user_id", uid), zap.Error(err))
		ErrorResponse(c, http.StatusInternalServerError, "Failed to read grants")
		return
	}
	if grants == nil {
		grants = []models.ModeratorGrant{}
	}

	c.JSON(http.StatusOK, meResponse{UserID: uid, Username: username, Grants: grants})
}

// Refresh issues a new token for the current operator
func (h *AuthHandler) Refresh(c *gin.Context) {
	uid, _ := middleware.UserID(c)
	token, err := h.jwtService.GenerateToken(uid, c.GetString(middleware.ContextUsername))
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
