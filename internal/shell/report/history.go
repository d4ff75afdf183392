package report

import (
	"context"
	"fmt"

	"github.com/artpar/deployer/internal/core/domain"
	"github.com/artpar/deployer/internal/shell/store"
)

// History persists each run and its finalized records.
type History struct {
	store store.Store
}

// NewHistory creates a reporter saving runs to s.
func NewHistory(s store.Store) *History {
	return &History{store: s}
}

func (h *History) ReportSuccess(ctx context.Context, run *domain.Run, result *domain.Result) error {
	return h.save(ctx, run, result.Records())
}

// ReportFailure keeps the partial records so a later run can see what is
// already on chain.
func (h *History) ReportFailure(ctx context.Context, run *domain.Run, finalized []domain.Record, cause error) error {
	return h.save(ctx, run, finalized)
}

func (h *History) save(ctx context.Context, run *domain.Run, records []domain.Record) error {
	err := h.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateRun(ctx, run); err != nil {
			return err
		}
		for _, rec := range records {
			if err := tx.AddRecord(ctx, run.ID, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run history: %w", err)
	}
	return nil
}
