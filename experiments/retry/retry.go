/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry retries calls to the Lemma API with capped exponential
// backoff.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/zoobzio/clockz"
)

// Config configures Do.
type Config struct {
	// MaxRetries is the number of attempts after the first. 0 disables retries.
	MaxRetries int
	// BaseBackoff is the wait before the first retry. It doubles per attempt.
	BaseBackoff time.Duration
	// MaxBackoff caps the wait between attempts, before jitter.
	MaxBackoff time.Duration
	// MaxJitter is the upper bound of the random delay added to each wait.
	MaxJitter time.Duration
	// Clock times the waits. Defaults to the real clock.
	Clock clockz.Clock
}

// Validate checks that the configuration has no negative values.
func (c Config) Validate() error {
	var errs []error
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.BaseBackoff < 0 {
		errs = append(errs, errors.New("base backoff cannot be negative"))
	}
	if c.MaxBackoff < 0 {
		errs = append(errs, errors.New("max backoff cannot be negative"))
	}
	if c.MaxJitter < 0 {
		errs = append(errs, errors.New("max jitter cannot be negative"))
	}
	return errors.Join(errs...)
}

// Default returns the configuration used by the experiments client.
func Default() Config {
	return Config{
		MaxRetries:  3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  10 * time.Second,
		MaxJitter:   250 * time.Millisecond,
	}
}

// backoff returns the wait before retry number attempt+1.
func (c Config) backoff(attempt int) time.Duration {
	d := min(c.BaseBackoff<<attempt, c.MaxBackoff)
	if d < 0 {
		// shifted past int64
		d = c.MaxBackoff
	}
	if c.MaxJitter > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(c.MaxJitter))); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}

// Do calls fn until it succeeds, returns an error isRetryable rejects, or
// MaxRetries retries have been spent. The last error is wrapped with
// operation once retries run out.
func Do[T any](ctx context.Context, cfg Config, operation string, isRetryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var (
		result  T
		lastErr error
	)
	clock := cfg.Clock
	if clock == nil {
		clock = clockz.RealClock
	}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, lastErr = fn(ctx)
		if lastErr == nil {
			return result, nil
		}
		if !isRetryable(lastErr) || attempt == cfg.MaxRetries {
			break
		}

		wait := cfg.backoff(attempt)
		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_retries", cfg.MaxRetries).
			With("backoff", wait).
			With("error", lastErr.Error()).
			Warn("Lemma API call failed, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-clock.After(wait):
		}
	}

	if cfg.MaxRetries > 0 && isRetryable(lastErr) {
		return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, lastErr)
	}
	return result, lastErr
}
