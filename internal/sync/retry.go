package sync

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/EduardoaMelegari/banco-projetos/internal/remote"
)

// RetryPolicy bounds how a single action is retried on transient remote
// failures. Local I/O errors are never retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries twice after the first failure, starting at
// 500ms and doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// withRetry runs fn under the policy. Only errors the remote layer marks
// retryable are retried; anything else surfaces immediately.
func (p RetryPolicy) withRetry(ctx context.Context, path string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !remote.IsRetryable(lastErr) || attempt == attempts {
			return lastErr
		}
		if errors.Is(lastErr, context.Canceled) {
			return lastErr
		}

		slog.Warn("transient sync failure, retrying", "path", path, "attempt", attempt, "delay", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(delay)):
		}

		delay = min(delay*2, p.MaxDelay)
	}

	return lastErr
}

// jitter spreads retries of concurrent actions so they don't hammer the
// store in lockstep.
func jitter(d time.Duration) time.Duration {
	factor := 0.75 + (rand.Float64() * 0.5)
	return time.Duration(float64(d) * factor)
}
