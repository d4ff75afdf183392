package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Run Errors
// =============================================================================

var ErrInvalidTransition = errors.New("invalid run status transition")

// =============================================================================
// Run Status
// =============================================================================

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// validRunTransitions defines the allowed run status transitions.
var validRunTransitions = map[RunStatus][]RunStatus{
	RunPending:   {RunRunning, RunFailed},
	RunRunning:   {RunSucceeded, RunFailed},
	RunSucceeded: {}, // Terminal
	RunFailed:    {}, // Terminal
}

// ValidateRunTransition checks if a run status transition is valid.
func ValidateRunTransition(from, to RunStatus) error {
	allowed, exists := validRunTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// =============================================================================
// Run
// =============================================================================

// Run is one orchestration run over a dependency graph.
type Run struct {
	ID           string     `json:"id"`
	Status       RunStatus  `json:"status"`
	Identity     Identity   `json:"identity"`
	Plan         Plan       `json:"plan,omitempty"`
	FailedStep   string     `json:"failed_step,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// NewRun creates a pending run.
func NewRun() *Run {
	return &Run{
		ID:        uuid.New().String(),
		Status:    RunPending,
		StartedAt: time.Now().UTC(),
	}
}

// Transition moves the run to a new status.
func (r *Run) Transition(to RunStatus) error {
	if err := ValidateRunTransition(r.Status, to); err != nil {
		return err
	}
	r.Status = to
	if to == RunSucceeded || to == RunFailed {
		now := time.Now().UTC()
		r.FinishedAt = &now
	}
	return nil
}

// Fail transitions the run to failed and records the cause.
func (r *Run) Fail(step string, cause error) error {
	if err := r.Transition(RunFailed); err != nil {
		return err
	}
	r.FailedStep = step
	if cause != nil {
		r.ErrorMessage = cause.Error()
	}
	return nil
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}
