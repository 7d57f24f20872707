package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/costavn/notify-engine/internal/config"
	"github.com/costavn/notify-engine/internal/handler"
	"github.com/costavn/notify-engine/internal/infra/postgresql"
	"github.com/costavn/notify-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/costavn/notify-engine/internal/infra/redis"
	"github.com/costavn/notify-engine/internal/observability"
	"github.com/costavn/notify-engine/internal/provider"
	"github.com/costavn/notify-engine/internal/queue"
	"github.com/costavn/notify-engine/internal/repository"
	"github.com/costavn/notify-engine/internal/service"
	"github.com/costavn/notify-engine/internal/stream"
	"github.com/costavn/notify-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	notificationRepo := repository.NewGormNotificationRepo(db)
	userRepo := repository.NewGormUserRepo(db)

	recipientCache, err := infraredis.NewRecipientCache(rdb, cfg.RecipientCacheTTL())
	if err != nil {
		logger.Fatal("recipient cache initialization failed", zap.Error(err))
	}

	resolver, err := service.NewRecipientResolver(userRepo, recipientCache, logger)
	if err != nil {
		logger.Fatal("recipient resolver initialization failed", zap.Error(err))
	}

	hub := stream.NewHub(cfg.StreamHeartbeat(), logger)

	broadcastService, err := service.NewBroadcastService(notificationRepo, userRepo, hub, logger)
	if err != nil {
		logger.Fatal("broadcast service initialization failed", zap.Error(err))
	}
	broadcastService.SetMetrics(metrics)

	mailer := newMailer(cfg, logger)

	actionQueue := queue.NewActionQueue(cfg.ActionQueueCapacity, logger)
	actionService, err := service.NewActionService(actionQueue, resolver, mailer, broadcastService, logger)
	if err != nil {
		logger.Fatal("action service initialization failed", zap.Error(err))
	}
	actionService.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	notificationHandler, err := handler.NewNotificationHandler(broadcastService, hub, logger)
	if err != nil {
		logger.Fatal("notification handler initialization failed", zap.Error(err))
	}
	notificationHandler.SetMetrics(metrics)
	if err := handler.RegisterNotificationRoutes(app, notificationHandler, cfg.JWTSecret); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return actionService.Start(groupCtx)
	})

	group.Go(func() error {
		logger.Info("notify-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		hub.Shutdown()
		return app.Shutdown()
	})

	if err := group.Wait(); err != nil {
		logger.Fatal("notify-engine api stopped", zap.Error(err))
	}

	logger.Info("notify-engine api stopped")
}

func newMailer(cfg *config.Config, logger *zap.Logger) provider.Mailer {
	if cfg.MailAPIURL == "" {
		logger.Warn("MAIL_API_URL not set, email digests will be discarded")
		return provider.NewNoopMailer(logger)
	}

	mailer, err := provider.NewHTTPMailer(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
	if err != nil {
		logger.Fatal("mailer initialization failed", zap.Error(err))
	}
	return mailer
}
