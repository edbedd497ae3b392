// Package runnertest provides a scriptable runner.Backend and an event
// recorder for tests.
package runnertest

import (
	"context"
	"sync"

	"cooker/internal/runner"
)

// Backend is a scriptable runner.Backend.
//
// Zero value creates, starts and completes successfully without blocking.
type Backend struct {
	JobName string

	CreateErr   error
	RunningErr  error
	Fail        bool   // WaitUntilComplete reports failure
	FailReason  string // Returned by FailureReason
	CompleteErr error  // WaitUntilComplete abandons the wait

	// Release, if set, holds WaitUntilComplete until it is closed or the
	// context ends.
	Release <-chan struct{}

	mu              sync.Mutex
	calls           []string
	teardowns       int
	enteredOnce     sync.Once
	enteredComplete chan struct{}
}

// NewBackend returns a Backend that succeeds.
func NewBackend() *Backend {
	return &Backend{enteredComplete: make(chan struct{})}
}

func (b *Backend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

// Create implements runner.Backend.
func (b *Backend) Create(ctx context.Context) error {
	b.record("create")
	return b.CreateErr
}

// WaitUntilRunning implements runner.Backend.
func (b *Backend) WaitUntilRunning(ctx context.Context) error {
	b.record("waitUntilRunning")
	return b.RunningErr
}

// WaitUntilComplete implements runner.Backend.
func (b *Backend) WaitUntilComplete(ctx context.Context) (bool, error) {
	b.record("waitUntilComplete")
	b.enteredOnce.Do(func() {
		if b.enteredComplete != nil {
			close(b.enteredComplete)
		}
	})

	if b.Release != nil {
		select {
		case <-b.Release:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if b.CompleteErr != nil {
		return false, b.CompleteErr
	}
	return !b.Fail, nil
}

// FailureReason implements runner.FailureReporter.
func (b *Backend) FailureReason() string {
	return b.FailReason
}

// Teardown implements runner.Backend.
func (b *Backend) Teardown(ctx context.Context) {
	b.record("teardown")
	b.mu.Lock()
	b.teardowns++
	b.mu.Unlock()
}

// InComplete is closed once WaitUntilComplete has been entered.
// Only available on backends made with NewBackend.
func (b *Backend) InComplete() <-chan struct{} {
	return b.enteredComplete
}

// Calls returns the backend methods invoked so far, in order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Teardowns returns how many times Teardown was called.
func (b *Backend) Teardowns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.teardowns
}

// Factory hands out backends in construction order. The build function
// receives the 1-based sequence number of the runner being constructed.
type Factory struct {
	build func(n int) *Backend

	mu       sync.Mutex
	backends []*Backend
}

// NewFactory creates a Factory. A nil build yields NewBackend for every runner.
func NewFactory(build func(n int) *Backend) *Factory {
	if build == nil {
		build = func(int) *Backend { return NewBackend() }
	}
	return &Factory{build: build}
}

// New implements runner.BackendFactory.
func (f *Factory) New(jobName string) runner.Backend {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.build(len(f.backends) + 1)
	b.JobName = jobName
	f.backends = append(f.backends, b)
	return b
}

// Backend returns the backend handed to the n-th runner (1-based).
func (f *Factory) Backend(n int) *Backend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backends[n-1]
}
