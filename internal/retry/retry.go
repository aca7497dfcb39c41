// Package retry is a small context-aware retry engine with exponential
// backoff and jitter. The uploader is its only production caller; keeping it
// separate keeps the backoff math testable without network plumbing.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Config controls retry behaviour.
type Config struct {
	MaxAttempts int           // total attempts including the first
	InitDelay   time.Duration // delay before the first retry
	MaxDelay    time.Duration // cap on any single delay
	Jitter      bool          // add up to +-25% random jitter
}

// DefaultConfig retries 5 times, backing off from 1s to 30s with jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		InitDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      true,
	}
}

// StopError wraps a permanent error so Do returns it without further
// attempts.
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return e.Err.Error() }
func (e *StopError) Unwrap() error { return e.Err }

// Stop marks err as permanent.
func Stop(err error) error {
	return &StopError{Err: err}
}

// Do calls fn until it succeeds, the attempt budget is spent, the context is
// done, or fn returns a StopError. The last error is returned on exhaustion.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var stop *StopError
		if errors.As(lastErr, &stop) {
			return stop.Err
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-time.After(Delay(cfg, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// Delay computes the backoff for a 0-indexed attempt.
func Delay(cfg Config, attempt int) time.Duration {
	delay := cfg.InitDelay << uint(attempt)
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter && delay > 0 {
		quarter := int64(delay) / 4
		if quarter > 0 {
			j := time.Duration(rand.Int64N(quarter))
			if rand.IntN(2) == 0 {
				delay += j
			} else {
				delay -= j
			}
		}
	}
	return delay
}
