package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tullo/wordguard/internal/auth"
	"github.com/tullo/wordguard/internal/cache"
	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/locale"
	"github.com/tullo/wordguard/internal/middleware"
	"github.com/tullo/wordguard/internal/moderation"
	"github.com/tullo/wordguard/internal/repository"
	"go.uber.org/zap"
)

// RouterConfig carries everything the operator API needs.
type RouterConfig struct {
	DB              *database.DB
	Store           *repository.Store
	Redis           *cache.RedisClient
	JWT             *auth.JWTService
	Authorizer      *moderation.Authorizer
	Aggregator      *moderation.Aggregator
	Locales         *locale.Bundle
	RateLimiter     *middleware.RateLimiter
	Feed            Feed
	AllowedOrigins  []string
	DefaultTemplate string
	DefaultLocale   string
	StoreTimeout    time.Duration
	Logger          *zap.Logger
}

// Register mounts the operator API on r.
func Register(r *gin.Engine, cfg RouterConfig) {
	scope := newChatScope(cfg.Authorizer, cfg.StoreTimeout, cfg.Logger)

	healthHandler := NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := NewAuthHandler(cfg.Store, cfg.JWT, scope.timeout, cfg.Logger)
	wordHandler := NewWordHandler(cfg.Store, scope)
	modHandler := NewModeratorHandler(cfg.Store, cfg.Authorizer, scope)
	templateHandler := NewTemplateHandler(cfg.Store, cfg.DefaultTemplate, scope)
	settingsHandler := NewSettingsHandler(cfg.Store, cfg.Locales, cfg.DefaultLocale, cfg.Feed, scope)
	statsHandler := NewStatisticsHandler(cfg.Store, cfg.Aggregator, scope)

	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWT))
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(cfg.RateLimiter))
	}
	{
		api.GET("/auth/me", authHandler.GetMe)
		api.POST("/auth/refresh", authHandler.Refresh)

		chats := api.Group("/chats/:chat_id")
		{
			chats.GET("/words", wordHandler.ListWords)
			chats.POST("/words", wordHandler.BanWord)
			chats.DELETE("/words", wordHandler.ClearWords)
			chats.DELETE("/words/:word", wordHandler.UnbanWord)

			chats.GET("/moderators", modHandler.ListModerators)
			chats.POST("/moderators", modHandler.AddModerator)
			chats.DELETE("/moderators/:user_id", modHandler.RemoveModerator)

			chats.GET("/templates", templateHandler.ListTemplates)
			chats.POST("/templates", templateHandler.AddTemplate)
			chats.DELETE("/templates/:template_id", templateHandler.DeleteTemplate)

			chats.GET("/settings", settingsHandler.GetSettings)
			chats.PUT("/settings", settingsHandler.UpdateSettings)

			chats.GET("/statistics", statsHandler.GetStatistics)
			chats.GET("/violations", statsHandler.GetViolations)
		}
	}
}
