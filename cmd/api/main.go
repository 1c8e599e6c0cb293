package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/notification-service/internal/config"
	"github.com/kursadbilgin/notification-service/internal/handler"
	"github.com/kursadbilgin/notification-service/internal/infra/postgresql"
	"github.com/kursadbilgin/notification-service/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/notification-service/internal/infra/redis"
	"github.com/kursadbilgin/notification-service/internal/observability"
	"github.com/kursadbilgin/notification-service/internal/queue"
	"github.com/kursadbilgin/notification-service/internal/repository"
	"github.com/kursadbilgin/notification-service/internal/service"
	"github.com/kursadbilgin/notification-service/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("api stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN, postgresql.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rabbit, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, cfg.QueueName)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	publisher := queue.NewRabbitMQPublisher(rabbit)
	defer publisher.Close() //nolint:errcheck

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()
	}

	metrics := observability.NewMetrics()

	notificationService, err := service.NewNotificationService(
		repository.NewGormNotificationRepo(db),
		publisher,
		cfg.QueueName,
		logger,
	)
	if err != nil {
		return err
	}
	notificationService.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:               "notification-service-api",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Header: observability.CorrelationIDHeader}))
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rabbit, rdb)
	handler.RegisterMetricsRoute(app, metrics)
	if err := handler.RegisterNotificationRoutes(app, notificationService); err != nil {
		return err
	}

	return serve(ctx, app, cfg.APIPort, logger)
}

// serve listens until ctx is canceled, then drains in-flight requests.
func serve(ctx context.Context, app *fiber.App, port int, logger *zap.Logger) error {
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(fmt.Sprintf(":%d", port))
	}()

	logger.Info("notification api started", zap.Int("port", port))

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down notification api")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("api shutdown failed: %w", err)
	}
	return nil
}
