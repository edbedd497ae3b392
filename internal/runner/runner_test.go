package runner_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"cooker/internal/apperrors"
	"cooker/internal/runner"
	"cooker/internal/runner/runnertest"
	"cooker/internal/testutil"
)

func waitDone(t *testing.T, r *runner.Runner) {
	t.Helper()
	testutil.MustBeClosed(t, r.Done())
	testutil.MustReachState(t, r, runner.StateEnd, testutil.WithTimeout(time.Second))
}

func newRunner(rec *runnertest.Recorder, ctx any, b *runnertest.Backend) *runner.Runner {
	return runner.New(rec.Observe, ctx, func(jobName string) runner.Backend {
		b.JobName = jobName
		return b
	})
}

func TestRunner_Success(t *testing.T) {
	t.Parallel()
	rec := &runnertest.Recorder{}
	b := runnertest.NewBackend()
	r := newRunner(rec, 1, b)

	r.Begin(context.Background())
	waitDone(t, r)

	want := []runner.State{runner.StateBegin, runner.StatePreparing, runner.StateRunning, runner.StateComplete, runner.StateEnd}
	if got := rec.States(1); !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if r.State() != runner.StateEnd {
		t.Errorf("State() = %s, want END", r.State())
	}

	wantCalls := []string{"create", "waitUntilRunning", "waitUntilComplete", "teardown"}
	if got := b.Calls(); !slices.Equal(got, wantCalls) {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}
}

func TestRunner_CreateFailure(t *testing.T) {
	t.Parallel()
	rec := &runnertest.Recorder{}
	b := runnertest.NewBackend()
	b.CreateErr = errors.New("api unreachable")
	r := newRunner(rec, "ctx", b)

	r.Begin(context.Background())
	waitDone(t, r)

	want := []runner.State{runner.StateBegin, runner.StatePreparing, runner.StateFailed, runner.StateEnd}
	if got := rec.States("ctx"); !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if slices.Contains(b.Calls(), "waitUntilRunning") {
		t.Error("did not expect a wait after a failed create")
	}

	events := rec.Events()
	failed := events[2]
	if !strings.Contains(failed.Message, "api unreachable") {
		t.Errorf("FAILED message = %q, want it to mention the cause", failed.Message)
	}
}

func TestRunner_WorkloadFailure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		reason string
		want   string
	}{
		{"backend reason", "exit code 3", "exit code 3"},
		{"no reason", "", "substrate reported failure"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &runnertest.Recorder{}
			b := runnertest.NewBackend()
			b.Fail = true
			b.FailReason = tt.reason
			r := newRunner(rec, i, b)

			r.Begin(context.Background())
			waitDone(t, r)

			want := []runner.State{runner.StateBegin, runner.StatePreparing, runner.StateRunning, runner.StateFailed, runner.StateEnd}
			if got := rec.States(i); !slices.Equal(got, want) {
				t.Errorf("states = %v, want %v", got, want)
			}
			if b.Teardowns() != 1 {
				t.Errorf("teardowns = %d, want 1", b.Teardowns())
			}

			wantMsg := apperrors.Workload(r.JobName(), tt.want).Error()
			if got := rec.Events()[3].Message; got != wantMsg {
				t.Errorf("FAILED message = %q, want %q", got, wantMsg)
			}
		})
	}
}

func TestRunner_WaitUntilRunningAbandoned(t *testing.T) {
	t.Parallel()
	rec := &runnertest.Recorder{}
	b := runnertest.NewBackend()
	b.RunningErr = errors.New("waitUntilRunning: no answer after 1m0s")
	r := newRunner(rec, 3, b)

	r.Begin(context.Background())
	waitDone(t, r)

	want := []runner.State{runner.StateBegin, runner.StatePreparing, runner.StateFailed, runner.StateEnd}
	if got := rec.States(3); !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if b.Teardowns() != 1 {
		t.Errorf("teardowns = %d, want 1 (workload was created)", b.Teardowns())
	}
}

func TestRunner_EndDuringWaitUntilComplete(t *testing.T) {
	t.Parallel()
	rec := &runnertest.Recorder{}
	release := make(chan struct{})
	b := runnertest.NewBackend()
	b.Release = release
	r := newRunner(rec, 1, b)

	r.Begin(context.Background())

	testutil.MustBeClosed(t, b.InComplete())
	testutil.MustReachState(t, r, runner.StateRunning)

	r.End()
	if !r.Stopping() {
		t.Error("expected Stopping() after End()")
	}
	// The backend would report success; the stop still wins.
	close(release)
	waitDone(t, r)

	want := []runner.State{runner.StateBegin, runner.StatePreparing, runner.StateRunning, runner.StateStopping, runner.StateStopped, runner.StateEnd}
	if got := rec.States(1); !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if rec.Count(runner.StateComplete) != 0 {
		t.Error("did not expect COMPLETE after a stop")
	}
}

func TestRunner_EndTwiceIsIdempotent(t *testing.T) {
	t.Parallel()
	rec := &runnertest.Recorder{}
	release := make(chan struct{})
	b := runnertest.NewBackend()
	b.Release = release
	r := newRunner(rec, 1, b)

	r.Begin(context.Background())
	<-b.InComplete()

	r.End()
	r.End()
	close(release)
	waitDone(t, r)

	if n := rec.Count(runner.StateStopping); n != 1 {
		t.Errorf("STOPPING emitted %d times, want 1", n)
	}
	if n := rec.Count(runner.StateStopped); n != 1 {
		t.Errorf("STOPPED emitted %d times, want 1", n)
	}
}

func TestRunner_EndAfterEndIsNoop(t *testing.T) {
	t.Parallel()
	rec := &runnertest.Recorder{}
	r := newRunner(rec, 1, runnertest.NewBackend())

	r.Begin(context.Background())
	waitDone(t, r)

	before := len(rec.Events())
	r.End()

	if after := len(rec.Events()); after != before {
		t.Errorf("End() after END emitted %d extra events", after-before)
	}
	if r.Stopping() {
		t.Error("End() after END should not set the stopping flag")
	}
}

func TestRunner_CancelledContextFailsWithoutStop(t *testing.T) {
	t.Parallel()
	rec := &runnertest.Recorder{}
	b := runnertest.NewBackend()
	b.Release = make(chan struct{}) // never released
	r := newRunner(rec, 1, b)

	ctx, cancel := context.WithCancel(context.Background())
	r.Begin(ctx)
	<-b.InComplete()
	cancel()
	waitDone(t, r)

	want := []runner.State{runner.StateBegin, runner.StatePreparing, runner.StateRunning, runner.StateFailed, runner.StateEnd}
	if got := rec.States(1); !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if b.Teardowns() != 1 {
		t.Errorf("teardowns = %d, want 1", b.Teardowns())
	}
}

func TestRunner_ContextIsCarriedUnchanged(t *testing.T) {
	t.Parallel()
	type token struct{ n int }
	ctxValue := &token{n: 9}

	rec := &runnertest.Recorder{}
	r := newRunner(rec, ctxValue, runnertest.NewBackend())
	r.Begin(context.Background())
	waitDone(t, r)

	events := rec.Events()
	if len(events) == 0 {
		t.Fatal("expected events")
	}
	for _, ev := range events {
		if ev.Context != ctxValue {
			t.Errorf("event %s carried context %v, want %v", ev.State, ev.Context, ctxValue)
		}
		if ev.RunnerID != r.ID() {
			t.Errorf("event %s carried runner %s, want %s", ev.State, ev.RunnerID, r.ID())
		}
	}
}

func TestRunner_JobName(t *testing.T) {
	t.Parallel()
	b := runnertest.NewBackend()
	r := newRunner(&runnertest.Recorder{}, 1, b)

	if !strings.HasPrefix(r.JobName(), runner.JobNamePrefix) {
		t.Errorf("JobName() = %q, want prefix %q", r.JobName(), runner.JobNamePrefix)
	}
	if !strings.HasSuffix(r.JobName(), r.ID().String()) {
		t.Errorf("JobName() = %q, want suffix %q", r.JobName(), r.ID())
	}
	if b.JobName != r.JobName() {
		t.Errorf("backend bound to %q, want %q", b.JobName, r.JobName())
	}
}

func TestRunner_UniqueIDs(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		r := newRunner(&runnertest.Recorder{}, i, runnertest.NewBackend())
		if seen[r.ID().String()] {
			t.Fatalf("duplicate runner ID %s", r.ID())
		}
		seen[r.ID().String()] = true
	}
}

func TestRunner_BeginTwicePanics(t *testing.T) {
	t.Parallel()
	r := newRunner(&runnertest.Recorder{}, 1, runnertest.NewBackend())
	r.Begin(context.Background())
	defer waitDone(t, r)

	defer func() {
		if recover() == nil {
			t.Error("expected second Begin to panic")
		}
	}()
	r.Begin(context.Background())
}

func TestNew_NilObserverPanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("expected New with nil observer to panic")
		}
	}()
	runner.New(nil, 1, func(string) runner.Backend { return runnertest.NewBackend() })
}
