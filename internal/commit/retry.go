package commit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakestore/core/pkg/errors"
)

// RetryConfig bounds how many times a commit attempt may retry after losing
// an optimistic-concurrency race, and the backoff between attempts.
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   10,
		BaseDelay:     50 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryableOperation returns (retry, err): retry is true when the caller
// should try again (the conflict was a non-fatal race), false when err, if
// any, is terminal.
type RetryableOperation func(ctx context.Context, attempt int) (retry bool, err error)

// RetryWithBackoff runs operation until it reports no more retry is wanted,
// an attempt returns a non-retriable error, or MaxAttempts is exhausted.
func RetryWithBackoff(ctx context.Context, cfg *RetryConfig, operation RetryableOperation, logger zerolog.Logger) error {
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		retry, err := operation(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("commit succeeded after retry")
			}
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", cfg.MaxAttempts).Dur("delay", delay).Msg("commit conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return errors.New(ErrRetryExhausted, "commit did not succeed within max attempts", lastErr).
		AddContext("max_attempts", cfg.MaxAttempts)
}
