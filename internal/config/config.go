package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	ProviderSimulated = "simulated"
	ProviderWebhook   = "webhook"
	ProviderPostmark  = "postmark"
)

// Config is shared by the api and worker processes. Each process reads only
// the fields it needs.
type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL"`

	QueueName         string `env:"QUEUE_NAME,default=notifications"`
	MaxRetries        int    `env:"MAX_RETRIES,default=3"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=1"`
	WorkerPrefetch    int    `env:"WORKER_PREFETCH,default=1"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=100"`

	APIPort          int    `env:"API_PORT,default=8000"`
	WorkerHealthPort int    `env:"WORKER_HEALTH_PORT,default=8001"`
	LogLevel         string `env:"LOG_LEVEL,default=info"`

	DeliveryProvider     string  `env:"DELIVERY_PROVIDER,default=simulated"`
	SimulatedMinDelayMS  int     `env:"SIMULATED_MIN_DELAY_MS,default=1000"`
	SimulatedMaxDelayMS  int     `env:"SIMULATED_MAX_DELAY_MS,default=3000"`
	SimulatedFailureRate float64 `env:"SIMULATED_FAILURE_RATE,default=0"`
	WebhookURL           string  `env:"WEBHOOK_URL"`
	PostmarkServerToken  string  `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string  `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string  `env:"SENDER_EMAIL"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.DeliveryProvider = strings.ToLower(strings.TrimSpace(cfg.DeliveryProvider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.MaxRetries))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.WorkerConcurrency))
	}
	if c.WorkerPrefetch < 1 {
		errs = append(errs, fmt.Errorf("WORKER_PREFETCH must be at least 1, got %d", c.WorkerPrefetch))
	}
	if c.RateLimitPerSec < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_SEC must be at least 1, got %d", c.RateLimitPerSec))
	}
	if strings.TrimSpace(c.QueueName) == "" {
		errs = append(errs, errors.New("QUEUE_NAME must not be empty"))
	}

	switch c.DeliveryProvider {
	case ProviderSimulated:
		if c.SimulatedMinDelayMS < 0 || c.SimulatedMaxDelayMS < 0 {
			errs = append(errs, errors.New("SIMULATED_*_DELAY_MS must not be negative"))
		}
		if c.SimulatedMinDelayMS > c.SimulatedMaxDelayMS {
			errs = append(errs, fmt.Errorf("SIMULATED_MIN_DELAY_MS (%d) exceeds SIMULATED_MAX_DELAY_MS (%d)",
				c.SimulatedMinDelayMS, c.SimulatedMaxDelayMS))
		}
		if c.SimulatedFailureRate < 0 || c.SimulatedFailureRate > 1 {
			errs = append(errs, fmt.Errorf("SIMULATED_FAILURE_RATE must be within [0,1], got %v", c.SimulatedFailureRate))
		}
	case ProviderWebhook:
		if strings.TrimSpace(c.WebhookURL) == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required when DELIVERY_PROVIDER=webhook"))
		}
	case ProviderPostmark:
		if c.PostmarkServerToken == "" || c.PostmarkAccountToken == "" || c.SenderEmail == "" {
			errs = append(errs, errors.New(
				"POSTMARK_SERVER_TOKEN, POSTMARK_ACCOUNT_TOKEN and SENDER_EMAIL are required when DELIVERY_PROVIDER=postmark"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DELIVERY_PROVIDER %q", c.DeliveryProvider))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) SimulatedMinDelay() time.Duration {
	return time.Duration(c.SimulatedMinDelayMS) * time.Millisecond
}

func (c *Config) SimulatedMaxDelay() time.Duration {
	return time.Duration(c.SimulatedMaxDelayMS) * time.Millisecond
}
