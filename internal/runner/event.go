package runner

import (
	"time"

	"github.com/google/uuid"
)

// StateEvent is emitted once per transition and handed to the Observer by value.
type StateEvent struct {
	State    State
	Context  any    // As supplied to New, unchanged for the runner's lifetime
	Message  string // Optional, set for FAILED
	RunnerID uuid.UUID
	Time     time.Time
}

// Observer receives every StateEvent of a runner.
//
// It is called synchronously on the emitting runner's goroutine, possibly
// from many runners at once. It must be safe for concurrent use and must
// return quickly.
type Observer func(StateEvent)
