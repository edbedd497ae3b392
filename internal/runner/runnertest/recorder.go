package runnertest

import (
	"sync"

	"cooker/internal/runner"
)

// Recorder is a thread-safe runner.Observer that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []runner.StateEvent
}

// Observe implements runner.Observer.
func (r *Recorder) Observe(ev runner.StateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []runner.StateEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runner.StateEvent(nil), r.events...)
}

// States returns the states recorded for the given context, in order.
func (r *Recorder) States(context any) []runner.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []runner.State
	for _, ev := range r.events {
		if ev.Context == context {
			states = append(states, ev.State)
		}
	}
	return states
}

// Count returns how many events with the given state were recorded.
func (r *Recorder) Count(state runner.State) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.State == state {
			n++
		}
	}
	return n
}
