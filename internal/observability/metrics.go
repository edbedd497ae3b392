package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the runner metrics of one stress run:
// - Traffic: runners launched and state transitions
// - Errors: failed runners
// - Saturation: runners currently running and the peak reached
// - Latency: runner lifetime from BEGIN to END
type Metrics struct {
	meter   metric.Meter
	backend string

	RunnersLaunched   metric.Int64Counter
	RunnerTransitions metric.Int64Counter
	RunnerFailures    metric.Int64Counter
	RunnersRunning    metric.Int64UpDownCounter
	RunnersToFinish   metric.Int64Gauge
	RunnersMaxRunning metric.Int64Gauge
	RunnerLifetime    metric.Float64Histogram
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
// backend labels every measurement.
func NewMetrics(ctx context.Context, backend string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("cooker")
	m := &Metrics{meter: meter, backend: backend}

	m.RunnersLaunched, err = meter.Int64Counter(
		"runners_launched_total",
		metric.WithDescription("Total number of runners launched"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunnerTransitions, err = meter.Int64Counter(
		"runner_transitions_total",
		metric.WithDescription("Total number of runner state transitions"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunnerFailures, err = meter.Int64Counter(
		"runner_failures_total",
		metric.WithDescription("Total number of runners that reached FAILED"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunnersRunning, err = meter.Int64UpDownCounter(
		"runners_running",
		metric.WithDescription("Number of runners currently running (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunnersToFinish, err = meter.Int64Gauge(
		"runners_to_finish",
		metric.WithDescription("Number of runners that have not reached END"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunnersMaxRunning, err = meter.Int64Gauge(
		"runners_max_concurrent",
		metric.WithDescription("Highest number of runners observed running at once"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunnerLifetime, err = meter.Float64Histogram(
		"runner_lifetime_seconds",
		metric.WithDescription("Runner lifetime from BEGIN to END in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 900, 1800),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordLaunched records runners being launched.
func (m *Metrics) RecordLaunched(ctx context.Context, n int) {
	m.RunnersLaunched.Add(ctx, int64(n), WithBackend(m.backend))
	m.RunnersToFinish.Record(ctx, int64(n), WithBackend(m.backend))
}

// RecordTransition records one runner state transition.
func (m *Metrics) RecordTransition(ctx context.Context, state string) {
	m.RunnerTransitions.Add(ctx, 1, metric.WithAttributes(backendAttr(m.backend), stateAttr(state)))
}

// RecordRunning records a runner entering or leaving the running set.
func (m *Metrics) RecordRunning(ctx context.Context, delta int64) {
	m.RunnersRunning.Add(ctx, delta, WithBackend(m.backend))
}

// RecordFailed records a runner reaching FAILED.
func (m *Metrics) RecordFailed(ctx context.Context) {
	m.RunnerFailures.Add(ctx, 1, WithBackend(m.backend))
}

// RecordCounters records the supervisor's remaining and peak counts.
func (m *Metrics) RecordCounters(ctx context.Context, toFinish, maxConcurrent int) {
	m.RunnersToFinish.Record(ctx, int64(toFinish), WithBackend(m.backend))
	m.RunnersMaxRunning.Record(ctx, int64(maxConcurrent), WithBackend(m.backend))
}

// RecordLifetime records how long a runner lived and how it finished.
func (m *Metrics) RecordLifetime(ctx context.Context, outcome string, durationSeconds float64) {
	m.RunnerLifetime.Record(ctx, durationSeconds, metric.WithAttributes(backendAttr(m.backend), outcomeAttr(outcome)))
}
