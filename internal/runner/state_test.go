package runner

import "testing"

func TestStateString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state State
		want  string
	}{
		{StateBegin, "BEGIN"},
		{StatePreparing, "PREPARING"},
		{StateRunning, "RUNNING"},
		{StateComplete, "COMPLETE"},
		{StateStopping, "STOPPING"},
		{StateStopped, "STOPPED"},
		{StateFailed, "FAILED"},
		{StateEnd, "END"},
		{stateNone, "UNKNOWN"},
		{State(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStateOrder(t *testing.T) {
	t.Parallel()
	ordered := []State{StateBegin, StatePreparing, StateRunning, StateComplete, StateStopping, StateStopped, StateFailed, StateEnd}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1] >= ordered[i] {
			t.Errorf("expected %s < %s", ordered[i-1], ordered[i])
		}
	}
}

func TestStateClassification(t *testing.T) {
	t.Parallel()
	for _, s := range []State{StateBegin, StatePreparing, StateRunning, StateComplete, StateStopping, StateStopped, StateFailed, StateEnd} {
		if got, want := s.IsTerminal(), s == StateEnd; got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
		wantOutcome := s == StateComplete || s == StateStopped || s == StateFailed
		if got := s.IsOutcome(); got != wantOutcome {
			t.Errorf("%s.IsOutcome() = %v, want %v", s, got, wantOutcome)
		}
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to State
		want     bool
	}{
		{stateNone, StateBegin, true},
		{stateNone, StatePreparing, false},
		{StateBegin, StatePreparing, true},
		{StateBegin, StateRunning, false},
		{StatePreparing, StateRunning, true},
		{StatePreparing, StateFailed, true},
		{StatePreparing, StateComplete, false},
		{StateRunning, StateComplete, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateStopping, true},
		{StateRunning, StateStopped, false},
		{StateRunning, StateEnd, false},
		{StateStopping, StateStopped, true},
		{StateStopping, StateEnd, false},
		{StateComplete, StateEnd, true},
		{StateComplete, StateFailed, false},
		{StateStopped, StateEnd, true},
		{StateFailed, StateEnd, true},
		{StateFailed, StateFailed, false},
		{StateEnd, StateBegin, false},
		{StateEnd, StateEnd, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
