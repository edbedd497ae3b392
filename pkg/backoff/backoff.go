// Package backoff computes exponential delays and retries short cleanup calls.
package backoff

import (
	"context"
	"math"
	"time"
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial  time.Duration // default: 200ms
	Max      time.Duration // default: 2s
	Attempts int           // Retry only; default: 3
}

// Exponential returns the delay before the given attempt.
// Attempt 1 returns Initial, attempt 2 twice that, capped at Max.
func Exponential(attempt int, cfg *Config) time.Duration {
	initial := 200 * time.Millisecond
	maxDelay := 2 * time.Second
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxDelay = cfg.Max
		}
	}

	if attempt < 1 {
		return initial
	}
	delay := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(delay)
}

// Retry calls fn until it succeeds, the attempts run out or ctx ends. It
// returns the last error from fn, or ctx.Err() if ctx ended while waiting.
func Retry(ctx context.Context, cfg *Config, fn func() error) error {
	attempts := 3
	if cfg != nil && cfg.Attempts > 0 {
		attempts = cfg.Attempts
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(Exponential(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
