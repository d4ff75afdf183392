package sequencer

import (
	"errors"
	"fmt"

	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrSubmissionFailure means the chain client could not submit a step.
	ErrSubmissionFailure = errors.New("submission failure")

	// ErrFinalizationFailure means a submitted step never became final.
	ErrFinalizationFailure = errors.New("finalization failure")
)

// StepError reports the step a run aborted on. Finalized holds the records of
// steps that were already final when the run stopped, in execution order.
type StepError struct {
	Step      string
	Template  string
	Kind      error // ErrSubmissionFailure, ErrFinalizationFailure or domain.ErrInvariantViolation
	Err       error
	Finalized []domain.Record
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s): %v: %v", e.Step, e.Template, e.Kind, e.Err)
}

// Unwrap exposes both the failure kind and the underlying cause.
func (e *StepError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsStepError reports whether err is or wraps a StepError.
func IsStepError(err error) bool {
	var se *StepError
	return errors.As(err, &se)
}

// FinalizedRecords returns the records finalized before err aborted a run,
// or nil when err does not carry any.
func FinalizedRecords(err error) []domain.Record {
	var se *StepError
	if errors.As(err, &se) {
		return se.Finalized
	}
	return nil
}
