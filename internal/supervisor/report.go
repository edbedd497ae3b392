package supervisor

import "time"

// Report summarizes a finished (or in-progress) run.
type Report struct {
	Counters
	Launched  int
	Completed int
	Stopped   int

	// Lifetimes of runners that reached END, BEGIN to END.
	Finished    int64
	LifetimeMin time.Duration
	LifetimeMax time.Duration
	LifetimeP50 time.Duration
	LifetimeP90 time.Duration
	LifetimeP99 time.Duration
}

// Report returns the current counters with runner lifetime percentiles.
func (s *Supervisor) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Report{
		Counters:  s.counters,
		Launched:  len(s.runners),
		Completed: s.completed,
		Stopped:   s.stopped,
		Finished:  s.lifetimes.TotalCount(),
	}
	if r.Finished == 0 {
		return r
	}

	r.LifetimeMin = msDuration(s.lifetimes.Min())
	r.LifetimeMax = msDuration(s.lifetimes.Max())
	r.LifetimeP50 = msDuration(s.lifetimes.ValueAtQuantile(50))
	r.LifetimeP90 = msDuration(s.lifetimes.ValueAtQuantile(90))
	r.LifetimeP99 = msDuration(s.lifetimes.ValueAtQuantile(99))
	return r
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
