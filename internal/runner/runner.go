// Package runner drives one workload through the cooker lifecycle:
//
//	BEGIN → PREPARING → RUNNING → COMPLETE | FAILED | STOPPING, STOPPED → END
//
// A workload that cannot be created goes PREPARING → FAILED → END.
//
// Every event of a runner is emitted from a single goroutine, so an Observer
// sees one runner's events in program order. Events of different runners
// interleave arbitrarily.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"cooker/internal/apperrors"

	"github.com/google/uuid"
)

// JobNamePrefix prefixes the substrate name of every runner's workload.
const JobNamePrefix = "cooker-job-"

// Runner owns one in-flight workload.
type Runner struct {
	id       uuid.UUID
	jobName  string
	context  any
	observer Observer
	backend  Backend
	logger   *slog.Logger

	state    atomic.Int32 // written only by the emitting goroutine
	begun    atomic.Bool
	stopping atomic.Bool
	done     chan struct{}
}

// New creates a runner. The backend is obtained from factory using the
// runner's job name. Nothing runs until Begin is called.
func New(observer Observer, callbackContext any, factory BackendFactory) *Runner {
	if observer == nil {
		panic("runner: nil observer")
	}
	if factory == nil {
		panic("runner: nil backend factory")
	}

	id := uuid.New()
	r := &Runner{
		id:       id,
		jobName:  JobNamePrefix + id.String(),
		context:  callbackContext,
		observer: observer,
		done:     make(chan struct{}),
	}
	r.backend = factory(r.jobName)
	if r.backend == nil {
		panic("runner: backend factory returned nil")
	}
	r.logger = slog.With("component", "runner", "runner", id.String(), "context", callbackContext)
	r.logger.Debug("New runner", "job", r.jobName)
	return r
}

// ID returns the runner's unique identifier.
func (r *Runner) ID() uuid.UUID { return r.id }

// JobName returns the substrate name of the runner's workload.
func (r *Runner) JobName() string { return r.jobName }

// Context returns the opaque context supplied to New.
func (r *Runner) Context() any { return r.context }

// State returns the last emitted state.
func (r *Runner) State() State { return State(r.state.Load()) }

// Stopping reports whether End has been accepted.
func (r *Runner) Stopping() bool { return r.stopping.Load() }

// Done is closed once END has been emitted.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Begin emits BEGIN and starts the runner on its own goroutine.
// It does not block. Calling it twice panics.
func (r *Runner) Begin(ctx context.Context) {
	if !r.begun.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("runner %s: Begin called twice", r.id))
	}
	r.emit(StateBegin, "")
	go r.run(ctx)
}

// End asks the runner to stop prematurely. It does not block and does not
// interrupt an in-flight substrate call: the runner resolves to STOPPED the
// next time it decides its outcome. End is a no-op if the runner is already
// stopping or has already reached its outcome.
func (r *Runner) End() {
	if s := r.State(); s.IsOutcome() || s.IsTerminal() {
		r.logger.Debug("Ignoring end, runner already gone")
		return
	}
	if r.stopping.Swap(true) {
		r.logger.Debug("Ignoring end, already stopping")
		return
	}
	r.logger.Info("Stop requested")
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	r.emit(StatePreparing, "")

	if err := r.backend.Create(ctx); err != nil {
		r.logger.Error("Failed to create workload", "job", r.jobName, "error", err)
		r.fail(ctx, err.Error())
		return
	}
	r.logger.Info("Workload created", "job", r.jobName)

	if err := r.backend.WaitUntilRunning(ctx); err != nil {
		r.logger.Error("Workload never started", "job", r.jobName, "error", err)
		r.fail(ctx, err.Error())
		return
	}
	r.emit(StateRunning, "")
	r.logger.Info("Workload running", "job", r.jobName)

	success, err := r.backend.WaitUntilComplete(ctx)

	// A requested stop wins over whatever the substrate reported.
	switch {
	case r.stopping.Load():
		r.emit(StateStopping, "")
		r.emit(StateStopped, "")
	case err != nil:
		r.logger.Error("Lost track of workload", "job", r.jobName, "error", err)
		r.emit(StateFailed, err.Error())
	case success:
		r.emit(StateComplete, "")
	default:
		r.emit(StateFailed, apperrors.Workload(r.jobName, r.failureReason()).Error())
	}

	r.teardown(ctx)
	r.emit(StateEnd, "")
}

func (r *Runner) failureReason() string {
	if fr, ok := r.backend.(FailureReporter); ok {
		if reason := fr.FailureReason(); reason != "" {
			return reason
		}
	}
	return "substrate reported failure"
}

func (r *Runner) fail(ctx context.Context, msg string) {
	r.emit(StateFailed, msg)
	r.teardown(ctx)
	r.emit(StateEnd, "")
}

// teardown runs even if ctx has been cancelled.
func (r *Runner) teardown(ctx context.Context) {
	r.backend.Teardown(context.WithoutCancel(ctx))
}

// emit records s and hands the event to the observer. An illegal
// transition is a programming error and panics.
func (r *Runner) emit(s State, msg string) {
	prev := r.State()
	if !CanTransition(prev, s) {
		panic(fmt.Sprintf("runner %s: illegal transition %s -> %s", r.id, prev, s))
	}
	r.state.Store(int32(s))
	if s.IsTerminal() {
		r.logger.Debug("Runner finished", "job", r.jobName)
	} else {
		r.logger.Debug("New runner state", "state", s.String())
	}

	r.observer(StateEvent{
		State:    s,
		Context:  r.context,
		Message:  msg,
		RunnerID: r.id,
		Time:     time.Now(),
	})
}
