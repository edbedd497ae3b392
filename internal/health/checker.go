// Package health provides liveness and readiness checks for the stress run.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ReadinessChecker is implemented by backend substrates to report whether
// they can accept workloads.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded means the backend answered, but slower than the
	// checker's slow threshold. A cluster under stress is expected to be here.
	StatusDegraded Status = "degraded"
)

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Response aggregates the checks of a probe.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// IsHealthy reports whether every check passed without degradation.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// IsServing reports whether the process should keep receiving traffic.
// Degraded responses still serve.
func (r *Response) IsServing() bool {
	return r.Status != StatusUnhealthy
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout bounds a single backend probe.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// WithSlowThreshold sets the probe latency past which the backend is
// reported degraded.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *Checker) { c.slow = d }
}

// WithCacheTTL sets how long a readiness result is reused.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Checker) { c.ttl = d }
}

// Checker probes the backend substrate on behalf of /readyz.
type Checker struct {
	backend ReadinessChecker
	timeout time.Duration
	slow    time.Duration
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	cached   *Response
	cachedAt time.Time
	stopping bool
}

// NewChecker creates a health checker for backend, which may be nil.
func NewChecker(backend ReadinessChecker, opts ...Option) *Checker {
	c := &Checker{
		backend: backend,
		timeout: 5 * time.Second,
		slow:    2 * time.Second,
		ttl:     time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Liveness reports the process as alive. It never touches the substrate.
func (c *Checker) Liveness(context.Context) *Response {
	return &Response{Status: StatusHealthy}
}

// Readiness probes the substrate, reusing a result younger than the cache
// TTL so frequent probes do not add load to a cluster under stress.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.Lock()
	switch {
	case c.stopping:
		c.mu.Unlock()
		return single("shutdown", CheckResult{Status: StatusUnhealthy, Message: "stress run is stopping"})
	case c.cached != nil && c.now().Sub(c.cachedAt) < c.ttl:
		cached := c.cached
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	resp := single("backend", c.probe(ctx))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopping {
		return single("shutdown", CheckResult{Status: StatusUnhealthy, Message: "stress run is stopping"})
	}
	c.cached, c.cachedAt = resp, c.now()
	return resp
}

// SetShuttingDown makes readiness fail from now on.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopping = true
	c.cached = nil
}

func (c *Checker) probe(ctx context.Context) CheckResult {
	if c.backend == nil {
		return CheckResult{Status: StatusUnhealthy, Message: "backend not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	err := c.backend.Ready(ctx)
	latency := c.now().Sub(start)

	result := CheckResult{Status: StatusHealthy, Latency: latency.String()}
	switch {
	case err != nil:
		result.Status, result.Message = StatusUnhealthy, err.Error()
	case c.slow > 0 && latency > c.slow:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("backend answered in %s", latency.Round(time.Millisecond))
	}
	return result
}

func single(name string, check CheckResult) *Response {
	return &Response{
		Status: check.Status,
		Checks: map[string]CheckResult{name: check},
	}
}
