// Package pipeline implements the decision-to-execution pipeline: research
// coordination, decision synthesis, execution planning, order execution, and
// the per-user orchestration that ties the phases together.
package pipeline

import (
	"errors"
	"fmt"
)

// Severity classifies pipeline failures so callers cannot mistake an expected
// skip for an error or a fatal abort for something retryable.
type Severity string

const (
	// SeveritySkip is an expected, counted non-event (missing position,
	// sub-share order, all-HOLD decision set). Never surfaced as an error.
	SeveritySkip Severity = "skip"
	// SeverityRecoverable is a failure a later run may not hit again.
	SeverityRecoverable Severity = "recoverable"
	// SeverityFatal aborts the remaining phases for the current user.
	SeverityFatal Severity = "fatal"
)

// PhaseError is a classified failure from one pipeline phase.
type PhaseError struct {
	Phase    string
	Severity Severity
	Err      error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Phase, e.Severity, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

func fatalErr(phase string, err error) *PhaseError {
	return &PhaseError{Phase: phase, Severity: SeverityFatal, Err: err}
}

func recoverableErr(phase string, err error) *PhaseError {
	return &PhaseError{Phase: phase, Severity: SeverityRecoverable, Err: err}
}

// IsFatal reports whether err carries fatal severity.
func IsFatal(err error) bool {
	var pe *PhaseError
	return errors.As(err, &pe) && pe.Severity == SeverityFatal
}
