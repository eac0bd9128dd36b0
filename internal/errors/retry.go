package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig controls exponential backoff for transient provider failures.
type RetryConfig struct {
	MaxRetries   int           // attempts after the first one
	InitialDelay time.Duration // wait before the first retry
	MaxDelay     time.Duration // cap on a single wait
	Multiplier   float64       // growth factor per retry
	Jitter       bool          // scale each wait by a random factor in [0.5, 1)
}

// DefaultRetryConfig is used by the remote embedder.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retry calls fn until it succeeds, returns a non-retryable *SearchError,
// runs out of retries, or ctx is done.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for functions that produce a value. On failure the
// zero value is returned.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := cfg.InitialDelay

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if isPermanent(err) {
			return zero, err
		}
		lastErr = err
		if attempt >= cfg.MaxRetries {
			break
		}

		timer := time.NewTimer(cfg.wait(backoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		backoff = min(time.Duration(float64(backoff)*cfg.Multiplier), cfg.MaxDelay)
	}

	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

func (cfg RetryConfig) wait(backoff time.Duration) time.Duration {
	if !cfg.Jitter {
		return backoff
	}
	return time.Duration(float64(backoff) * (0.5 + rand.Float64()*0.5))
}

// isPermanent reports whether err is a structured error that retrying cannot fix.
// Plain errors are treated as transient.
func isPermanent(err error) bool {
	var se *SearchError
	if As(err, &se) {
		return !se.Retryable
	}
	return false
}
