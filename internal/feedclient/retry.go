package feedclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// transientError marks failures worth another attempt: network errors,
// 5xx responses and rate limiting.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// retryWithBackoff calls fn up to attempts times, sleeping attempt*backoff
// between tries. Non-retryable errors and context cancellation end it early.
func retryWithBackoff[T any](ctx context.Context, logger *slog.Logger, target string,
	attempts int, backoff time.Duration, fn func() (T, error),
) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info("fetch succeeded after retry", "target", target, "attempt", attempt)
			}
			return result, nil
		}
		lastErr = err

		if !isRetryableError(err) || ctx.Err() != nil {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		delay := time.Duration(attempt) * backoff
		logger.Warn("fetch failed, retrying", "target", target, "attempt", attempt, "delay", delay, "err", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, fmt.Errorf("%w (last error: %w)", ctx.Err(), lastErr)
		}
	}
	return zero, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}
