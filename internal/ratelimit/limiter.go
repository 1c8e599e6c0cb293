package ratelimit

import "context"

// RateLimiter bounds delivery throughput per scope (the delivery provider name).
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}

// Unlimited never throttles. It is used when no Redis backend is configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }

func (Unlimited) Wait(ctx context.Context, _ string) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

var _ RateLimiter = Unlimited{}
