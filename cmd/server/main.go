package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tullo/wordguard/config"
	"github.com/tullo/wordguard/internal/audit"
	"github.com/tullo/wordguard/internal/auth"
	"github.com/tullo/wordguard/internal/bot"
	"github.com/tullo/wordguard/internal/cache"
	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/handlers"
	"github.com/tullo/wordguard/internal/locale"
	"github.com/tullo/wordguard/internal/logging"
	"github.com/tullo/wordguard/internal/middleware"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/moderation"
	"github.com/tullo/wordguard/internal/repository"
	"github.com/tullo/wordguard/internal/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.Open(cfg.Database.Driver, cfg.GetDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("Running database migrations", zap.String("driver", db.Driver))
	if err := database.RunMigrations(ctx, db, logger); err != nil {
		return err
	}

	store := repository.NewStore(db)
	if err := seedSuperAdmins(ctx, store, cfg.Moderation.SuperAdminIDs, logger); err != nil {
		return err
	}

	// Connect to Redis
	redis, err := cache.NewRedisClient(ctx, cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Running without Redis, live feed and rate limits are per process", zap.Error(err))
		redis = nil
	} else {
		defer redis.Close()
	}

	recorder, err := audit.Open(cfg.Log.Dir, cfg.Log.File, cfg.Log.MaxSize)
	if err != nil {
		return err
	}
	defer recorder.Close()

	locales, err := locale.Load(locale.Fallback, logger)
	if err != nil {
		return err
	}

	hub := websocket.NewHub(redis, logger.Named("ws"))

	renderer := moderation.NewRenderer(store, cfg.Moderation.DefaultTemplate, logger.Named("renderer"))
	engine := moderation.NewEngine(store, renderer, logger.Named("engine")).WithRecorder(recorder)
	if redis != nil {
		engine.WithPublisher(redis)
	} else {
		engine.WithPublisher(hub)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	authorizer := moderation.NewAuthorizer(store)

	rateLimiter := middleware.NewRateLimiter(cfg.API.RateLimitRequestsPerSec, redis, logger)
	rateLimiter.Cleanup(ctx)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")))

	handlers.Register(router, handlers.RouterConfig{
		DB:              db,
		Store:           store,
		Redis:           redis,
		JWT:             jwtService,
		Authorizer:      authorizer,
		Aggregator:      moderation.NewAggregator(store),
		Locales:         locales,
		RateLimiter:     rateLimiter,
		Feed:            hub,
		AllowedOrigins:  cfg.API.AllowedOrigins,
		DefaultTemplate: cfg.Moderation.DefaultTemplate,
		DefaultLocale:   cfg.Moderation.DefaultLocale,
		StoreTimeout:    cfg.Moderation.StoreTimeout,
		Logger:          logger.Named("api"),
	})

	wsHandler := websocket.NewHandler(hub, jwtService, authorizer, cfg.API.AllowedOrigins, logger.Named("ws"))
	router.GET("/ws/chats/:chat_id/violations", wsHandler.HandleViolations)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Telegram.Token == "" {
		logger.Warn("TELEGRAM_BOT_API is not set, running the operator API only")
	} else {
		telegram, err := bot.NewTelegram(cfg.Telegram.Token, logger.Named("telegram"))
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}

		b := bot.New(telegram, store, engine, locales, bot.Config{
			Workers:         cfg.Telegram.Workers,
			StoreTimeout:    cfg.Moderation.StoreTimeout,
			DefaultLocale:   cfg.Moderation.DefaultLocale,
			DefaultTemplate: cfg.Moderation.DefaultTemplate,
		}, logger.Named("bot"))

		g.Go(func() error {
			return b.Run(gctx, telegram.Events(gctx))
		})
	}

	return g.Wait()
}

// seedSuperAdmins makes sure every configured super admin holds a super-scope grant.
func seedSuperAdmins(ctx context.Context, store *repository.Store, ids []int64, logger *zap.Logger) error {
	for _, id := range ids {
		inserted, err := store.InsertModeratorGrant(ctx, id, models.SuperScope)
		if err != nil {
			return err
		}
		if inserted {
			logger.Info("Seeded super admin", zap.Int64("user_id", id))
		}
	}
	return nil
}
