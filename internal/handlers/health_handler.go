package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tullo/wordguard/internal/cache"
	"github.com/tullo/wordguard/internal/database"
)

type HealthHandler struct {
	db    *database.DB
	redis *cache.RedisClient
}

func NewHealthHandler(db *database.DB, redis *cache.RedisClient) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Health reports database and Redis reachability. Redis is optional.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "database": "ok"}
	code := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	if h.redis == nil {
		status["redis"] = "disabled"
	} else if err := h.redis.GetClient().Ping(ctx).Err(); err != nil {
		status["status"] = "degraded"
		status["redis"] = err.Error()
	} else {
		status["redis"] = "ok"
	}

	c.JSON(code, status)
}
