package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notification-service/internal/config"
	"github.com/kursadbilgin/notification-service/internal/handler"
	"github.com/kursadbilgin/notification-service/internal/infra/postgresql"
	infraredis "github.com/kursadbilgin/notification-service/internal/infra/redis"
	"github.com/kursadbilgin/notification-service/internal/observability"
	"github.com/kursadbilgin/notification-service/internal/provider"
	"github.com/kursadbilgin/notification-service/internal/queue"
	"github.com/kursadbilgin/notification-service/internal/ratelimit"
	"github.com/kursadbilgin/notification-service/internal/repository"
	"github.com/kursadbilgin/notification-service/internal/service"
	"github.com/kursadbilgin/notification-service/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

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
		logger.Fatal("worker stopped with error", zap.Error(err))
	}
}

// run builds every dependency lazily so the health server is listening
// before Postgres, RabbitMQ or Redis are reachable. Store and broker outages
// surface as requeues and consumer reconnects, not as process exits.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.OpenPostgres(cfg.DatabaseDSN, postgresql.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rabbit, err := queue.NewRabbitMQClient(cfg.RabbitMQURL, cfg.QueueName)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerPrefetch, logger)
	defer consumer.Close() //nolint:errcheck

	sender, err := newSender(cfg)
	if err != nil {
		return err
	}

	var (
		rdb     *redis.Client
		limiter ratelimit.RateLimiter = ratelimit.Unlimited{}
	)
	if cfg.RedisURL != "" {
		rdb, err = infraredis.OpenRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		limiter, err = infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
		if err != nil {
			return err
		}
	}

	metrics := observability.NewMetrics()

	healthApp := newHealthApp(logger, sqlDB, rabbit, rdb, metrics)
	go func() {
		if err := healthApp.Listen(fmt.Sprintf(":%d", cfg.WorkerHealthPort)); err != nil {
			logger.Error("worker health server stopped", zap.Error(err))
		}
	}()
	defer func() {
		if err := healthApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Warn("worker health server shutdown failed", zap.Error(err))
		}
	}()

	worker, err := service.NewWorkerService(
		repository.NewGormNotificationRepo(db),
		consumer,
		sender,
		limiter,
		service.WorkerConfig{
			QueueName:   cfg.QueueName,
			Concurrency: cfg.WorkerConcurrency,
			MaxRetries:  cfg.MaxRetries,
		},
		logger,
	)
	if err != nil {
		return err
	}
	worker.SetMetrics(metrics)

	logger.Info("notification worker started",
		zap.String("queue", cfg.QueueName),
		zap.String("provider", sender.Name()),
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Int("prefetch", cfg.WorkerPrefetch),
		zap.Int("maxRetries", cfg.MaxRetries),
		zap.Bool("rateLimited", rdb != nil),
	)

	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}

	logger.Info("notification worker stopped")
	return nil
}

// newHealthApp serves liveness, readiness and metrics. /health never touches
// a dependency, so it answers while the broker or store is down.
func newHealthApp(
	logger *zap.Logger,
	sqlDB *sql.DB,
	broker handler.BrokerStatus,
	rdb *redis.Client,
	metrics *observability.Metrics,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "notification-service-worker",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	handler.RegisterHealthRoutes(app, sqlDB, broker, rdb)
	handler.RegisterMetricsRoute(app, metrics)
	return app
}

func newSender(cfg *config.Config) (provider.Sender, error) {
	switch cfg.DeliveryProvider {
	case config.ProviderWebhook:
		return provider.NewWebhookSender(cfg.WebhookURL)
	case config.ProviderPostmark:
		return provider.NewPostmarkSender(provider.PostmarkConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
			SenderEmail:  cfg.SenderEmail,
		})
	default:
		return provider.NewSimulatedSender(cfg.SimulatedMinDelay(), cfg.SimulatedMaxDelay(), cfg.SimulatedFailureRate)
	}
}
