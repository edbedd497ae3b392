package runner

// State is a runner lifecycle state. Values are ordered.
type State int32

const (
	stateNone State = iota

	// StateBegin is always the first event.
	StateBegin
	// StatePreparing indicates the workload is being submitted.
	StatePreparing
	// StateRunning indicates the substrate reports the workload as started.
	StateRunning
	// StateComplete indicates the workload finished naturally.
	StateComplete
	// StateStopping indicates a premature stop was requested.
	StateStopping
	// StateStopped indicates the runner stopped in response to End().
	StateStopped
	// StateFailed indicates the workload could not be created or failed.
	StateFailed
	// StateEnd is always the last event. Nothing follows it.
	StateEnd
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateBegin:
		return "BEGIN"
	case StatePreparing:
		return "PREPARING"
	case StateRunning:
		return "RUNNING"
	case StateComplete:
		return "COMPLETE"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	case StateFailed:
		return "FAILED"
	case StateEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal returns true if no transition can follow s.
func (s State) IsTerminal() bool {
	return s == StateEnd
}

// IsOutcome returns true for the states that decide how a runner finished.
func (s State) IsOutcome() bool {
	return s == StateComplete || s == StateStopped || s == StateFailed
}

// CanTransition reports whether to may be emitted directly after from.
func CanTransition(from, to State) bool {
	switch from {
	case stateNone:
		return to == StateBegin
	case StateBegin:
		return to == StatePreparing
	case StatePreparing:
		return to == StateRunning || to == StateFailed
	case StateRunning:
		return to == StateComplete || to == StateFailed || to == StateStopping
	case StateStopping:
		return to == StateStopped
	case StateComplete, StateStopped, StateFailed:
		return to == StateEnd
	default:
		return false
	}
}
