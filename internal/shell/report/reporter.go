// Package report publishes the outcome of a deployment run.
package report

import (
	"context"
	"errors"

	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Reporter Interface
// =============================================================================

// Reporter receives the outcome of a run. The run passed in is already in
// its terminal state.
type Reporter interface {
	// ReportSuccess is called once every step is finalized.
	ReportSuccess(ctx context.Context, run *domain.Run, result *domain.Result) error

	// ReportFailure is called when a run aborts. finalized holds the steps
	// that were final before the failure, in execution order.
	ReportFailure(ctx context.Context, run *domain.Run, finalized []domain.Record, cause error) error
}

// Multi fans a report out to several reporters. Every reporter is called
// even if an earlier one fails.
type Multi []Reporter

func (m Multi) ReportSuccess(ctx context.Context, run *domain.Run, result *domain.Result) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportSuccess(ctx, run, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) ReportFailure(ctx context.Context, run *domain.Run, finalized []domain.Record, cause error) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportFailure(ctx, run, finalized, cause); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
