// Package observability provides runner metrics exported to Prometheus.
package observability

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrBackend = "backend"
	attrState   = "state"
	attrOutcome = "outcome"
)

func backendAttr(backend string) attribute.KeyValue {
	return attribute.String(attrBackend, backend)
}

func stateAttr(state string) attribute.KeyValue {
	return attribute.String(attrState, normalizeState(state))
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, normalizeState(outcome))
}

// normalizeState lower-cases state names to keep label values consistent.
func normalizeState(state string) string {
	return strings.ToLower(strings.TrimSpace(state))
}

// WithBackend returns a metric option with the backend attribute.
func WithBackend(backend string) metric.MeasurementOption {
	return metric.WithAttributes(backendAttr(backend))
}
