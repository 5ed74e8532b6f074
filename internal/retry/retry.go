// Package retry re-runs operations that lost an optimistic concurrency race.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"orderdesk/internal/logging"
)

// Config controls attempts and backoff.
type Config struct {
	MaxAttempts        int
	InitialInterval    time.Duration
	MaxInterval        time.Duration
	BackoffCoefficient float64
	// Retryable decides whether an error is worth another attempt. Nil
	// retries every error.
	Retryable func(error) bool
}

// DefaultConfig suits short read-modify-write cycles against the database.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        5,
		InitialInterval:    10 * time.Millisecond,
		MaxInterval:        200 * time.Millisecond,
		BackoffCoefficient: 2.0,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx ends.
func Do[T any](ctx context.Context, cfg Config, logger *zap.Logger, fn func() (T, error)) (T, error) {
	logger = logging.OrNop(logger)
	var zero T
	var lastErr error
	interval := cfg.InitialInterval
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, err
		}

		lastErr = err
		logger.Debug("retry attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", attempts),
			zap.Error(err))

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(interval):
		}

		interval = time.Duration(float64(interval) * cfg.BackoffCoefficient)
		if cfg.MaxInterval > 0 && interval > cfg.MaxInterval {
			interval = cfg.MaxInterval
		}
	}

	return zero, fmt.Errorf("max attempts reached: %w", lastErr)
}
