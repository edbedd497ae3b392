package observability

import (
	"context"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx, "kubernetes")
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	if metrics == nil {
		t.Fatal("Expected metrics to be non-nil")
	}

	if handler == nil {
		t.Fatal("Expected handler to be non-nil")
	}
}

func TestRecordRunnerMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, _, err := NewMetrics(ctx, "docker")
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	// Should not panic
	metrics.RecordLaunched(ctx, 3)
	metrics.RecordTransition(ctx, "BEGIN")
	metrics.RecordTransition(ctx, "RUNNING")
	metrics.RecordRunning(ctx, 1)
	metrics.RecordRunning(ctx, -1)
	metrics.RecordFailed(ctx)
	metrics.RecordCounters(ctx, 2, 1)
	metrics.RecordLifetime(ctx, "COMPLETE", 42.5)
}

func TestNormalizeState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected string
	}{
		{"RUNNING", "running"},
		{"END", "end"},
		{"failed", "failed"},
		{" COMPLETE ", "complete"},
		{"", ""},
	}

	for _, tt := range tests {
		result := normalizeState(tt.input)
		if result != tt.expected {
			t.Errorf("normalizeState(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
