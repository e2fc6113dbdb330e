package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tullo/wordguard/internal/cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter limits requests per operator. With Redis the bucket is shared by
// every server process; without it, or when Redis fails, a local bucket is used.
type RateLimiter struct {
	limiters map[int64]*rate.Limiter
	mu       sync.Mutex
	rps      int
	rate     rate.Limit
	burst    int
	redis    *cache.RedisClient
	logger   *zap.Logger
}

func NewRateLimiter(rps int, redis *cache.RedisClient, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[int64]*rate.Limiter),
		rps:      rps,
		rate:     rate.Limit(rps),
		burst:    rps * 2,
		redis:    redis,
		logger:   logger,
	}
}

func (rl *RateLimiter) getLimiter(userID int64) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[userID]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[userID] = limiter
	}

	return limiter
}

// Allow reports whether the operator may make another request.
func (rl *RateLimiter) Allow(ctx context.Context, userID int64) bool {
	if rl.redis != nil {
		ok, err := rl.redis.AllowAction(ctx, userID, "api", rl.rps, rl.burst)
		if err == nil {
			return ok
		}
		// fallback to local limiter if Redis errors
		rl.logger.Warn("Redis rate limiter failed", zap.Error(err))
	}
	return rl.getLimiter(userID).Allow()
}

// Cleanup periodically drops local limiters until ctx is done
func (rl *RateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.mu.Lock()
				// full buckets carry no state worth keeping
				for id, l := range rl.limiters {
					if l.Tokens() >= float64(rl.burst) {
						delete(rl.limiters, id)
					}
				}
				rl.mu.Unlock()
			}
		}
	}()
}

// RateLimitMiddleware limits requests per authenticated operator
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := UserID(c)
		if !ok {
			c.Next()
			return
		}

		if !rl.Allow(c.Request.Context(), uid) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}
