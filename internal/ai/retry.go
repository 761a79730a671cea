// internal/ai/retry.go
package ai

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryWithBackoff runs op up to maxAttempts times with exponential
// backoff (baseDelay * 2^(attempt-1)) between attempts, returning the
// final error once attempts are exhausted. The completion stream itself is
// not wrapped by default; callers opt in per operation.
func RetryWithBackoff(ctx context.Context, log *zap.SugaredLogger, maxAttempts int, baseDelay time.Duration, op func() error) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		delay := baseDelay * time.Duration(1<<(attempt-1))
		log.Warnw("attempt failed, retrying",
			"attempt", attempt, "delay", delay, "error", lastErr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
