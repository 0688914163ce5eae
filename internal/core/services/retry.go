package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

// RetryConfig bounds retries of embedding, completion and knowledge-store calls
type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the default upstream retry policy
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxTries:        3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// retryUpstream runs fn with exponential backoff and wraps the final error as domain.ErrUpstream.
// Validation and not-found errors are returned immediately without retrying.
func retryUpstream[T any](ctx context.Context, cfg RetryConfig, logger *slog.Logger, op string, fn func() (T, error)) (T, error) {
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 1
	}

	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}

	attempt := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("upstream call failed, retrying",
				"op", op,
				"attempt", attempt,
				"next_in", next,
				"error", err)
		}),
	)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUpstream) {
			return result, err
		}
		return result, fmt.Errorf("%w: %s: %v", domain.ErrUpstream, op, err)
	}
	return result, nil
}
