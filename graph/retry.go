package graph

import (
	"context"
	"time"
)

// RetryConfig configures the retry wrapper for a node body. The engine
// itself never retries a failed node; retry is a policy the caller opts a
// node into with WrapWithRetry.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// BackoffFactor multiplies the delay after each failed attempt.
	BackoffFactor float64

	// Retryable decides whether an error should trigger a retry. Nil
	// retries every error.
	Retryable func(error) bool
}

// DefaultRetryConfig returns a retry configuration with three attempts and
// exponential backoff from 100ms capped at 5s.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// WrapWithRetry wraps a node body with retry logic. The wrapped body
// re-invokes fn until it succeeds, the attempt budget is exhausted, the
// error is not retryable, or the context is cancelled.
func WrapWithRetry(fn NodeFunc, config *RetryConfig) NodeFunc {
	if config == nil {
		config = DefaultRetryConfig()
	}

	return func(ctx context.Context, state State) (State, error) {
		var lastErr error
		delay := config.InitialDelay

		for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
			update, err := fn(ctx, state)
			if err == nil {
				return update, nil
			}
			lastErr = err

			if config.Retryable != nil && !config.Retryable(err) {
				break
			}
			if attempt == config.MaxAttempts {
				break
			}

			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				}
			}
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if config.MaxDelay > 0 && delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
		return nil, lastErr
	}
}
