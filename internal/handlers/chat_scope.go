package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tullo/wordguard/internal/middleware"
	"github.com/tullo/wordguard/internal/moderation"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// chatScope resolves the :chat_id of a request and runs the same authorization
// check the bot commands use.
type chatScope struct {
	authorizer *moderation.Authorizer
	timeout    time.Duration
	logger     *zap.Logger
}

func newChatScope(authorizer *moderation.Authorizer, timeout time.Duration, logger *zap.Logger) chatScope {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return chatScope{authorizer: authorizer, timeout: timeout, logger: logger}
}

// authorize returns the chat id and a store context bounded by the store timeout.
// On failure the response has already been written.
func (s chatScope) authorize(c *gin.Context) (int64, context.Context, context.CancelFunc, bool) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid chat ID")
		return 0, nil, nil, false
	}

	uid, ok := middleware.UserID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return 0, nil, nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	if _, err := s.authorizer.Require(ctx, chatID, uid); err != nil {
		cancel()
		if errors.Is(err, moderation.ErrAuthorizationDenied) {
			s.logger.Info("Operator denied", zap.Int64("chat_id", chatID), zap.Int64("user_id", uid))
			ErrorResponse(c, http.StatusForbidden, "Not a moderator of this chat")
			return 0, nil, nil, false
		}
		s.storeError(c, "Failed to check permissions", err)
		return 0, nil, nil, false
	}

	return chatID, ctx, cancel, true
}

func (s chatScope) storeError(c *gin.Context, message string, err error) {
	s.logger.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
	ErrorResponse(c, http.StatusInternalServerError, message)
}

// parseDay parses an optional ?date=YYYY-MM-DD query parameter.
func parseDay(c *gin.Context) (*time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return nil, true
	}
	day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return nil, false
	}
	return &day, true
}
