package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

const (
	defaultRetryAttempts = 2
	retryBaseDelay       = 5 * time.Second
	retryJitterMax       = 1500 * time.Millisecond
)

// withRetry runs fn up to attempts times, sleeping between tries with a
// linearly growing delay plus jitter so parallel callers fan out. Context
// cancellation aborts both the call and the wait.
func withRetry(ctx context.Context, attempts int, op string, logger *slog.Logger, fn func() error) error {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		logger.Warn("pipeline.retry",
			"op", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", lastErr,
		)
		if attempt == attempts {
			break
		}

		delay := retryBaseDelay*time.Duration(attempt) + time.Duration(rand.Int63n(int64(retryJitterMax)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}
