package domain

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is the number of additional attempts after the first.
	DefaultMaxRetries = 3

	// DefaultRetryBase is the backoff base: the first retry sleeps 2*base,
	// doubling on each further retry (2s, 4s, 8s with the default base).
	DefaultRetryBase = time.Second
)

// RetryCoordinator wraps a unit of work with bounded exponential-backoff
// retry on transient failures. Business failures are returned normally, not
// as errors, so they are delivered to the caller on the first attempt.
type RetryCoordinator struct {
	maxRetries int
	base       time.Duration
	logger     *zap.Logger
}

// NewRetryCoordinator creates a coordinator with the given bound and backoff
// base. Non-positive arguments fall back to the defaults.
func NewRetryCoordinator(maxRetries int, base time.Duration, logger *zap.Logger) *RetryCoordinator {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if base <= 0 {
		base = DefaultRetryBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryCoordinator{maxRetries: maxRetries, base: base, logger: logger}
}

// Execute runs fn, re-executing it from scratch on retryable errors until the
// bound is exhausted. Each re-execution re-reads all state, since a losing
// writer must observe the winner's committed version.
func (rc *RetryCoordinator) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt >= rc.maxRetries {
			return fmt.Errorf("retries exhausted after %d attempts: %w", attempt+1, err)
		}

		delay := rc.backoff(attempt)
		rc.logger.Warn("attempt failed, backing off",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if sleepErr := sleepContext(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

// backoff returns base * 2^(attempt+1), saturating on shift overflow.
func (rc *RetryCoordinator) backoff(attempt int) time.Duration {
	if attempt > 61 {
		attempt = 61
	}
	return rc.base * time.Duration(int64(1)<<(attempt+1))
}

// sleepContext sleeps for the given duration, waking early if the context is
// cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
