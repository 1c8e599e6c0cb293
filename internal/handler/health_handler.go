package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/notification-service/internal/observability"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// BrokerStatus reports message broker connectivity.
type BrokerStatus interface {
	IsConnected() bool
}

// RegisterHealthRoutes mounts /health and /livez (process liveness) and /readyz
// (dependency readiness). rdb may be nil when rate limiting is disabled.
func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, broker BrokerStatus, rdb *redis.Client) {
	app.Get("/health", LivezHandler())
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, broker, rdb))
}

// RegisterMetricsRoute exposes the Prometheus registry on /metrics.
func RegisterMetricsRoute(app fiber.Router, metrics *observability.Metrics) {
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(sqlDB *sql.DB, broker BrokerStatus, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		ready := true
		checks := fiber.Map{}

		if err := sqlDB.PingContext(ctx); err != nil {
			checks["postgres"] = "down"
			ready = false
		} else {
			checks["postgres"] = "ok"
		}

		if broker == nil || !broker.IsConnected() {
			checks["rabbitmq"] = "down"
			ready = false
		} else {
			checks["rabbitmq"] = "ok"
		}

		switch {
		case rdb == nil:
			checks["redis"] = "disabled"
		case rdb.Ping(ctx).Err() != nil:
			checks["redis"] = "down"
			ready = false
		default:
			checks["redis"] = "ok"
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if !ready {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
