package websocket

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tullo/wordguard/internal/auth"
	"github.com/tullo/wordguard/internal/moderation"
	"go.uber.org/zap"
)

// Handler upgrades authorized dashboard connections onto the violation feed
type Handler struct {
	hub        *Hub
	jwtService *auth.JWTService
	authorizer *moderation.Authorizer
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewHandler creates a new WebSocket handler. With no allowed origins every
// origin is accepted.
func NewHandler(hub *Hub, jwtService *auth.JWTService, authorizer *moderation.Authorizer, allowedOrigins []string, logger *zap.Logger) *Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	if len(allowedOrigins) > 0 {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return false
			}
			// allow exact match or wildcard like *.example.com
			for _, pattern := range allowedOrigins {
				if matchOrigin(pattern, origin) {
					return true
				}
			}
			return false
		}
	}

	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		authorizer: authorizer,
		upgrader:   upgrader,
		logger:     logger,
	}
}

// HandleViolations handles GET /ws/chats/:chat_id/violations?token=...
func (h *Handler) HandleViolations(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
		return
	}

	// Get token from query parameter
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	// Validate token
	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	role, err := h.authorizer.Require(c.Request.Context(), chatID, claims.UserID)
	if errors.Is(err, moderation.ErrAuthorizationDenied) {
		h.logger.Info("Feed access denied",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", claims.UserID))
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to authorize feed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to authorize"})
		return
	}

	// Upgrade connection
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, claims.UserID, chatID, role == moderation.RoleSuperAdmin, h.logger)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	// Start client pumps
	go client.WritePump()
	go client.ReadPump()
}

// matchOrigin supports exact matches or wildcard patterns like *.example.com
func matchOrigin(pattern, origin string) bool {
	if pattern == origin {
		return true
	}
	// simple wildcard support: pattern starts with *.
	if strings.HasPrefix(pattern, "*.") {
		// strip scheme from origin if present
		originHost := origin
		if u, err := url.Parse(origin); err == nil && u.Hostname() != "" {
			originHost = u.Hostname()
		}
		patHost := strings.TrimPrefix(pattern, "*.")
		return strings.HasSuffix(originHost, "."+patHost)
	}
	return false
}
