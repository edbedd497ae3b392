package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSubmission(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("connection refused")
	err := Submission("kubernetes.createJob", cause)

	if !errors.Is(err, ErrSubmission) {
		t.Error("expected error to match ErrSubmission")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to match its cause")
	}
	if err.Error() != "kubernetes.createJob: connection refused" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Op != "kubernetes.createJob" {
		t.Errorf("expected op 'kubernetes.createJob', got %q", appErr.Op)
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestWorkload(t *testing.T) {
	t.Parallel()
	err := Workload("cooker-job-1", "phase Failed")

	if !errors.Is(err, ErrWorkload) {
		t.Error("expected error to match ErrWorkload")
	}
	if errors.Is(err, ErrSubmission) {
		t.Error("did not expect error to match ErrSubmission")
	}
	if err.Error() != "workload cooker-job-1 failed: phase Failed" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()
	err := Timeout("waitUntilRunning", 30*time.Second)

	if !errors.Is(err, ErrTimeout) {
		t.Error("expected error to match ErrTimeout")
	}
	if err.Error() != "waitUntilRunning: no answer after 30s" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestConfig(t *testing.T) {
	t.Parallel()
	err := Config("COOKER_CPU_LIMIT", "not a quantity")

	if !errors.Is(err, ErrConfig) {
		t.Error("expected error to match ErrConfig")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "COOKER_CPU_LIMIT" {
		t.Errorf("expected field 'COOKER_CPU_LIMIT', got %q", appErr.Field)
	}
}

func TestErrorsIsWithWrapping(t *testing.T) {
	t.Parallel()
	original := Submission("docker.createContainer", context.DeadlineExceeded)
	wrapped := fmt.Errorf("create: %w", original)
	doubleWrapped := fmt.Errorf("runner: %w", wrapped)

	if !errors.Is(doubleWrapped, ErrSubmission) {
		t.Error("expected errors.Is to find ErrSubmission through multiple wraps")
	}
	if !errors.Is(doubleWrapped, context.DeadlineExceeded) {
		t.Error("expected errors.Is to find the cause through multiple wraps")
	}
}
