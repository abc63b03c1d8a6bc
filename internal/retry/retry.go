// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
//
// It backs the coordination-service session only; HTTP fetches are never
// retried.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config defines a bounded, fixed-delay retry policy.
type Config struct {
	// Attempts is the maximum number of calls to the operation. Values below
	// one are treated as one.
	Attempts int

	// Delay is the pause between consecutive attempts.
	Delay time.Duration
}

// Default matches the coordination client policy: three attempts, 500ms apart.
var Default = Config{Attempts: 3, Delay: 500 * time.Millisecond}

// ShouldRetryFunc reports whether err is transient. A nil ShouldRetryFunc
// retries every error.
type ShouldRetryFunc func(error) bool

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. Context cancellation during a delay returns the
// context error.
func Do(ctx context.Context, cfg Config, fn func() error, shouldRetry ShouldRetryFunc) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(cfg.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		lastErr = err
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
