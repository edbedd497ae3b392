// Package apperrors provides structured errors for classifying substrate failures.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrSubmission = errors.New("submission failed")
	ErrWorkload   = errors.New("workload failed")
	ErrTimeout    = errors.New("timed out")
	ErrConfig     = errors.New("invalid configuration")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For configuration errors (e.g., "COOKER_CPU_LIMIT")
	Op       string // Operation that failed (e.g., "kubernetes.createJob")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel and the cause so both are visible to errors.Is().
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Submission creates an error for a workload that could not be created.
func Submission(op string, cause error) error {
	return &Error{
		Sentinel: ErrSubmission,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Workload creates an error for a workload the substrate reported as failed.
func Workload(name, detail string) error {
	return &Error{
		Sentinel: ErrWorkload,
		Message:  fmt.Sprintf("workload %s failed: %s", name, detail),
	}
}

// Timeout creates an error for a wait that exceeded its deadline.
func Timeout(op string, after time.Duration) error {
	return &Error{
		Sentinel: ErrTimeout,
		Message:  fmt.Sprintf("%s: no answer after %s", op, after),
		Op:       op,
	}
}

// Config creates a configuration error for a specific field.
func Config(field, message string) error {
	return &Error{
		Sentinel: ErrConfig,
		Message:  fmt.Sprintf("%s: %s", field, message),
		Field:    field,
	}
}
