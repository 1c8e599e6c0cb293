package provider

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kursadbilgin/notification-service/internal/domain"
)

// SimulatedName is the sender name used for rate limit scoping.
const SimulatedName = "simulated"

// SimulatedSender stands in for a real delivery channel: it blocks for a random
// duration in [MinDelay, MaxDelay] and fails with probability FailureRate.
type SimulatedSender struct {
	minDelay    time.Duration
	maxDelay    time.Duration
	failureRate float64

	// test hooks
	randFloat func() float64
	randInt64 func(n int64) int64
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewSimulatedSender(minDelay, maxDelay time.Duration, failureRate float64) (*SimulatedSender, error) {
	if minDelay < 0 || maxDelay < 0 {
		return nil, fmt.Errorf("simulated delays must not be negative")
	}
	if minDelay > maxDelay {
		return nil, fmt.Errorf("simulated min delay %s exceeds max delay %s", minDelay, maxDelay)
	}
	if failureRate < 0 || failureRate > 1 {
		return nil, fmt.Errorf("simulated failure rate must be within [0,1], got %v", failureRate)
	}

	return &SimulatedSender{
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		failureRate: failureRate,
		randFloat:   rand.Float64,
		randInt64:   rand.Int63n,
		sleep:       sleepContext,
	}, nil
}

func (s *SimulatedSender) Name() string { return SimulatedName }

func (s *SimulatedSender) Send(ctx context.Context, notification domain.Notification) (*SendResult, error) {
	if err := s.sleep(ctx, s.delay()); err != nil {
		return nil, &ProviderError{
			Message:   "simulated send interrupted",
			Transient: true,
			Cause:     err,
		}
	}

	if s.failureRate > 0 && s.randFloat() < s.failureRate {
		return nil, &ProviderError{
			Message:   fmt.Sprintf("simulated delivery failure for %s", notification.Recipient),
			Transient: true,
		}
	}

	return &SendResult{MessageID: "sim-" + notification.ID}, nil
}

func (s *SimulatedSender) delay() time.Duration {
	spread := s.maxDelay - s.minDelay
	if spread <= 0 {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.randInt64(int64(spread)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
