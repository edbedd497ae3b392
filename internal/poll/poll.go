// Package poll implements fixed-interval polling of an external substrate.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cooker/internal/apperrors"

	"golang.org/x/time/rate"
)

// Probe asks the substrate once. A nil error with done=false means the
// answer is not available yet. A non-nil error is logged and treated the same.
type Probe func(ctx context.Context) (done bool, err error)

// Options configures Until.
type Options struct {
	Op       string        // Name used in logs and timeout errors
	Interval time.Duration // Time between probes (default 6s)
	Timeout  time.Duration // Zero waits forever
	Limiter  *rate.Limiter // Optional, shared across callers
	Logger   *slog.Logger
}

const defaultInterval = 6 * time.Second

// Until runs probe immediately and then every Interval until it reports done.
// Probe errors never end the wait. Until returns an error only when the
// timeout expires or ctx ends.
func Until(ctx context.Context, opts Options, probe Probe) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return throttled(ctx, opts, err)
			}
		}

		done, err := probe(ctx)
		if err != nil {
			logger.Debug("Substrate not answering, will retry", "op", opts.Op, "error", err)
		} else if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return abandoned(ctx, opts)
		case <-ticker.C:
		}
	}
}

// throttled maps a failed limiter wait to an error. Wait fails before ctx
// ends when the reservation would outlast its deadline, so ctx.Err() may
// still be nil here.
func throttled(ctx context.Context, opts Options, waitErr error) error {
	if err := abandoned(ctx, opts); err != nil {
		return err
	}
	if opts.Timeout > 0 {
		return apperrors.Timeout(opts.Op, opts.Timeout)
	}
	return fmt.Errorf("%s: rate limiter: %w", opts.Op, waitErr)
}

func abandoned(ctx context.Context, opts Options) error {
	if opts.Timeout > 0 && ctx.Err() == context.DeadlineExceeded {
		return apperrors.Timeout(opts.Op, opts.Timeout)
	}
	return ctx.Err()
}
