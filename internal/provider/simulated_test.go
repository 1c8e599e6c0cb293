package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSimulatedSender(t *testing.T, minDelay, maxDelay time.Duration, rate float64) (*SimulatedSender, *[]time.Duration) {
	t.Helper()

	s, err := NewSimulatedSender(minDelay, maxDelay, rate)
	if err != nil {
		t.Fatalf("NewSimulatedSender() error = %v", err)
	}

	slept := make([]time.Duration, 0, 1)
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return s, &slept
}

func TestSimulatedSenderSendSuccess(t *testing.T) {
	t.Parallel()

	s, slept := newTestSimulatedSender(t, time.Second, 3*time.Second, 0)
	s.randInt64 = func(n int64) int64 {
		if n != int64(2*time.Second)+1 {
			t.Errorf("randInt64 bound = %d, want %d", n, int64(2*time.Second)+1)
		}
		return int64(500 * time.Millisecond)
	}

	resp, err := s.Send(context.Background(), testNotification())
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	if resp.MessageID != "sim-n-1" {
		t.Fatalf("MessageID = %q, want sim-n-1", resp.MessageID)
	}
	if len(*slept) != 1 || (*slept)[0] != 1500*time.Millisecond {
		t.Fatalf("slept = %v, want [1.5s]", *slept)
	}
	if s.Name() != SimulatedName {
		t.Fatalf("Name() = %q, want %q", s.Name(), SimulatedName)
	}
}

func TestSimulatedSenderFailureRate(t *testing.T) {
	t.Parallel()

	s, _ := newTestSimulatedSender(t, 0, 0, 0.5)

	s.randFloat = func() float64 { return 0.49 }
	_, err := s.Send(context.Background(), testNotification())
	if err == nil {
		t.Fatal("expected simulated failure")
	}
	if IsPermanent(err) {
		t.Fatal("simulated failure must be retryable")
	}

	s.randFloat = func() float64 { return 0.5 }
	if _, err := s.Send(context.Background(), testNotification()); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
}

func TestSimulatedSenderCanceled(t *testing.T) {
	t.Parallel()

	s, _ := newTestSimulatedSender(t, 0, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Send(ctx, testNotification())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Send() error = %v, want context.Canceled", err)
	}
	if IsPermanent(err) {
		t.Fatal("interrupted send must be retryable")
	}
}

func TestNewSimulatedSenderValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		min, max time.Duration
		rate     float64
	}{
		{name: "negative delay", min: -1, max: time.Second},
		{name: "min above max", min: 2 * time.Second, max: time.Second},
		{name: "rate below zero", max: time.Second, rate: -0.1},
		{name: "rate above one", max: time.Second, rate: 1.1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewSimulatedSender(tt.min, tt.max, tt.rate); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleepContext() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := sleepContext(ctx, time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("sleepContext() error = %v, want deadline exceeded", err)
	}
}
