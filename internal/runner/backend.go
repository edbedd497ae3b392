package runner

import "context"

// Backend drives one workload on an execution substrate.
//
// A Runner calls these methods sequentially from its own goroutine, in the
// order Create, WaitUntilRunning, WaitUntilComplete, Teardown. Substrate
// errors are returned or logged, never panicked.
type Backend interface {
	// Create submits the workload. An error is terminal for the runner
	// and is not retried.
	Create(ctx context.Context) error

	// WaitUntilRunning blocks until the substrate reports the workload as
	// started (or already finished). Transient substrate failures are not
	// returned; an error means the wait was abandoned.
	WaitUntilRunning(ctx context.Context) error

	// WaitUntilComplete blocks until the workload finishes and reports
	// whether the substrate treated it as a success.
	WaitUntilComplete(ctx context.Context) (bool, error)

	// Teardown removes whatever Create made. Idempotent and best effort.
	Teardown(ctx context.Context)
}

// FailureReporter is implemented by backends that can say why the
// substrate reported a workload as failed.
type FailureReporter interface {
	FailureReason() string
}

// BackendFactory returns a Backend bound to the given job name.
type BackendFactory func(jobName string) Backend
