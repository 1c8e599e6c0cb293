package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notification_service"

// Metrics holds the Prometheus collectors for the intake and worker processes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	submissionsTotal    *prometheus.CounterVec
	deliveredTotal      *prometheus.CounterVec
	failedTotal         *prometheus.CounterVec
	retriesTotal        *prometheus.CounterVec
	requeuesTotal       *prometheus.CounterVec
	discardedTotal      *prometheus.CounterVec
	sendDuration        *prometheus.HistogramVec
	workerInflight      *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Notification submissions by result (accepted, invalid, storage_error, queue_error).",
			},
			[]string{"result"},
		),
		deliveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_delivered_total",
				Help:      "Total number of notifications delivered.",
			},
			[]string{"provider"},
		),
		failedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_failed_total",
				Help:      "Total number of notifications that ended in FAILED state.",
			},
			[]string{"provider", "reason"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_retries_total",
				Help:      "Total number of failed deliveries requeued for another attempt.",
			},
			[]string{"provider"},
		),
		requeuesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_requeues_total",
				Help:      "Messages returned to the queue without consuming retry budget, by cause.",
			},
			[]string{"cause"},
		),
		discardedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_discarded_total",
				Help:      "Messages acknowledged without a delivery attempt, by reason.",
			},
			[]string{"reason"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_send_duration_seconds",
				Help:      "Delivery attempt duration in seconds by provider.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_inflight",
				Help:      "Current number of in-flight delivery attempts by provider.",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.submissionsTotal,
		m.deliveredTotal,
		m.failedTotal,
		m.retriesTotal,
		m.requeuesTotal,
		m.discardedTotal,
		m.sendDuration,
		m.workerInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncSubmission(result string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncDelivered(provider string) {
	if m == nil {
		return
	}
	m.deliveredTotal.WithLabelValues(normalizeLabel(provider)).Inc()
}

func (m *Metrics) IncFailed(provider string, reason string) {
	if m == nil {
		return
	}
	m.failedTotal.WithLabelValues(normalizeLabel(provider), normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncRetry(provider string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(normalizeLabel(provider)).Inc()
}

func (m *Metrics) IncRequeue(cause string) {
	if m == nil {
		return
	}
	m.requeuesTotal.WithLabelValues(normalizeLabel(cause)).Inc()
}

func (m *Metrics) IncDiscarded(reason string) {
	if m == nil {
		return
	}
	m.discardedTotal.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObserveSendDuration(provider string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.WithLabelValues(normalizeLabel(provider)).Observe(seconds)
}

func (m *Metrics) IncInFlight(provider string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(provider)).Inc()
}

func (m *Metrics) DecInFlight(provider string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(provider)).Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, path).Observe(duration.Seconds())
}

// routePath labels by the registered route pattern so ids do not explode cardinality.
func routePath(c *fiber.Ctx) string {
	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
