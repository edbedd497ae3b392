// Package testutil provides polling helpers for concurrent tests.
package testutil

import (
	"testing"
	"time"

	"cooker/internal/runner"
)

// WaitOptions configures WaitFor behavior.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitOption is a functional option for WaitFor.
type WaitOption func(*WaitOptions)

// WithTimeout sets the maximum wait time (default: 10s).
func WithTimeout(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Timeout = d
	}
}

// WithInterval sets the polling interval (default: 10ms).
func WithInterval(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Interval = d
	}
}

func applyOptions(opts []WaitOption) WaitOptions {
	o := WaitOptions{
		Timeout:  10 * time.Second,
		Interval: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WaitFor checks condition immediately and then every interval.
// It reports whether condition held before the timeout.
func WaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) bool {
	tb.Helper()
	o := applyOptions(opts)

	if condition() {
		return true
	}

	timeout := time.NewTimer(o.Timeout)
	defer timeout.Stop()
	ticker := time.NewTicker(o.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout.C:
			return condition()
		case <-ticker.C:
			if condition() {
				return true
			}
		}
	}
}

// MustWaitFor is WaitFor that fails the test on timeout.
func MustWaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, condition, opts...) {
		tb.Fatal("timed out waiting for condition")
	}
}

// MustBeClosed fails the test if ch is not closed within the timeout.
func MustBeClosed(tb testing.TB, ch <-chan struct{}, opts ...WaitOption) {
	tb.Helper()
	o := applyOptions(opts)

	select {
	case <-ch:
	case <-time.After(o.Timeout):
		tb.Fatalf("timed out after %v waiting for channel to close", o.Timeout)
	}
}

// StateSource is anything that reports a runner state, such as *runner.Runner.
type StateSource interface {
	State() runner.State
}

// MustReachState fails the test unless src reports want within the timeout.
func MustReachState(tb testing.TB, src StateSource, want runner.State, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, func() bool { return src.State() == want }, opts...) {
		tb.Fatalf("timed out waiting for state %s, last state %s", want, src.State())
	}
}
