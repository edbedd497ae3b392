// Package supervisor launches runners and aggregates their lifecycle events
// into process-wide counters.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cooker/internal/runner"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/google/uuid"
)

// ErrAlreadyLaunched is returned by a second call to Launch.
var ErrAlreadyLaunched = errors.New("supervisor: runners already launched")

// Counters is a snapshot of the aggregate runner statistics.
type Counters struct {
	Running       int // Runners currently in RUNNING
	ToFinish      int // Runners that have not reached END
	Failed        int // Runners that reached FAILED
	MaxConcurrent int // Highest Running seen
}

// MetricsRecorder is an optional interface for exporting runner metrics.
type MetricsRecorder interface {
	RecordLaunched(ctx context.Context, n int)
	RecordTransition(ctx context.Context, state string)
	RecordRunning(ctx context.Context, delta int64)
	RecordFailed(ctx context.Context)
	RecordCounters(ctx context.Context, toFinish, maxConcurrent int)
	RecordLifetime(ctx context.Context, outcome string, durationSeconds float64)
}

// Config holds configuration for a Supervisor.
type Config struct {
	Factory      runner.BackendFactory // Required
	PollInterval time.Duration         // How often AwaitCompletion checks (default 4s)
	Metrics      MetricsRecorder       // Optional
	Logger       *slog.Logger          // Optional
	Tap          runner.Observer       // Optional, sees every event after the counters
}

// runnerTrack is what the supervisor remembers about one runner.
type runnerTrack struct {
	begun   time.Time
	running bool
	outcome runner.State
}

// Supervisor launches a fixed number of runners and tallies their events.
//
// OnStateEvent is the runners' shared Observer. All counter updates happen
// under one mutex, so it is safe to call from every runner at once.
type Supervisor struct {
	factory      runner.BackendFactory
	pollInterval time.Duration
	metrics      MetricsRecorder
	logger       *slog.Logger
	tap          runner.Observer

	mu        sync.Mutex
	counters  Counters
	launched  bool
	stopAll   bool
	runners   []*runner.Runner
	tracks    map[uuid.UUID]*runnerTrack
	completed int
	stopped   int
	lifetimes *hdrhistogram.Histogram // milliseconds
	done      chan struct{}
}

// New creates a Supervisor.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("backend factory is required")
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 4 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Supervisor{
		factory:      cfg.Factory,
		pollInterval: pollInterval,
		metrics:      cfg.Metrics,
		logger:       logger.With("component", "supervisor"),
		tap:          cfg.Tap,
		tracks:       make(map[uuid.UUID]*runnerTrack),
		// Lifetimes from 1ms up to 24h with 3 significant figures.
		lifetimes: hdrhistogram.New(1, int64(24*time.Hour/time.Millisecond), 3),
		done:      make(chan struct{}),
	}, nil
}

// Launch starts n runners, numbered 1..n, each with its number as context.
// It does not wait for them. Launch may only be called once.
func (s *Supervisor) Launch(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("supervisor: cannot launch %d runners", n)
	}

	s.mu.Lock()
	if s.launched {
		s.mu.Unlock()
		return ErrAlreadyLaunched
	}
	s.launched = true
	s.counters.ToFinish = n
	if n == 0 {
		close(s.done)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordLaunched(ctx, n)
	}

	for i := 1; i <= n; i++ {
		s.logger.Debug("Creating runner", "context", i)
		r := runner.New(s.OnStateEvent, i, s.factory)

		s.mu.Lock()
		s.runners = append(s.runners, r)
		stop := s.stopAll
		s.mu.Unlock()

		// Begin emits BEGIN into OnStateEvent, so the lock must not be held.
		r.Begin(ctx)
		if stop {
			r.End()
		}
	}

	s.logger.Info("Launched runners", "count", n)
	return nil
}

// OnStateEvent is the Observer handed to every runner.
func (s *Supervisor) OnStateEvent(ev runner.StateEvent) {
	ctx := context.Background()

	s.mu.Lock()
	c := &s.counters
	track := s.tracks[ev.RunnerID]
	if track == nil {
		track = &runnerTrack{}
		s.tracks[ev.RunnerID] = track
	}

	var runningDelta int64
	var lifetime time.Duration
	switch ev.State {
	case runner.StateBegin:
		track.begun = ev.Time
	case runner.StateRunning:
		c.Running++
		track.running = true
		runningDelta = 1
	case runner.StateFailed:
		c.Failed++
	case runner.StateEnd:
		c.ToFinish--
		// Runners that never reached RUNNING were never counted.
		if track.running && c.Running > 0 {
			c.Running--
			runningDelta = -1
		}
		track.running = false
		if !track.begun.IsZero() {
			lifetime = ev.Time.Sub(track.begun)
			s.recordLifetime(lifetime)
		}
	}

	if ev.State.IsOutcome() {
		track.outcome = ev.State
		switch ev.State {
		case runner.StateComplete:
			s.completed++
		case runner.StateStopped:
			s.stopped++
		}
	}

	if c.Running > c.MaxConcurrent {
		c.MaxConcurrent = c.Running
	}
	snapshot := *c
	outcome := track.outcome

	if snapshot.Running > 0 || snapshot.ToFinish == 0 {
		s.logger.Info("Runner status",
			"running", snapshot.Running,
			"failed", snapshot.Failed,
			"toFinish", snapshot.ToFinish,
			"context", ev.Context,
			"state", ev.State.String(),
		)
	}

	if ev.State == runner.StateEnd {
		delete(s.tracks, ev.RunnerID)
		if snapshot.ToFinish == 0 {
			close(s.done)
		}
	}
	s.mu.Unlock()

	if s.tap != nil {
		s.tap(ev)
	}
	if s.metrics == nil {
		return
	}
	s.metrics.RecordTransition(ctx, ev.State.String())
	if runningDelta != 0 {
		s.metrics.RecordRunning(ctx, runningDelta)
	}
	if ev.State == runner.StateFailed {
		s.metrics.RecordFailed(ctx)
	}
	if ev.State == runner.StateEnd {
		s.metrics.RecordLifetime(ctx, outcome.String(), lifetime.Seconds())
		s.metrics.RecordCounters(ctx, snapshot.ToFinish, snapshot.MaxConcurrent)
	}
}

// recordLifetime must be called with s.mu held.
func (s *Supervisor) recordLifetime(d time.Duration) {
	ms := d.Milliseconds()
	if ms < s.lifetimes.LowestTrackableValue() {
		ms = s.lifetimes.LowestTrackableValue()
	}
	if ms > s.lifetimes.HighestTrackableValue() {
		ms = s.lifetimes.HighestTrackableValue()
	}
	_ = s.lifetimes.RecordValue(ms)
}

// AwaitCompletion blocks until every launched runner has reached END,
// checking at the configured poll interval. Failed runners do not end the
// wait early. It returns the final counters, or ctx.Err() if ctx ends first.
func (s *Supervisor) AwaitCompletion(ctx context.Context) (Counters, error) {
	s.logger.Info("Waiting for runners to complete")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		finished := s.launched && s.counters.ToFinish <= 0
		snapshot := s.counters
		s.mu.Unlock()

		if finished {
			s.logger.Info("All runners finished", "maxConcurrent", snapshot.MaxConcurrent, "failed", snapshot.Failed)
			return snapshot, nil
		}

		select {
		case <-ctx.Done():
			return snapshot, ctx.Err()
		case <-s.done:
		case <-ticker.C:
		}
	}
}

// Done is closed when the last launched runner reaches END.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// StopAll asks every launched runner to stop, including runners a
// concurrent Launch has yet to start. It does not wait.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	s.stopAll = true
	runners := append([]*runner.Runner(nil), s.runners...)
	s.mu.Unlock()

	s.logger.Info("Stopping runners", "count", len(runners))
	for _, r := range runners {
		r.End()
	}
}

// Snapshot returns the current counters.
func (s *Supervisor) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}
