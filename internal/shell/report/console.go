package report

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Console Reporter
// =============================================================================

// Console prints a table of deployed addresses.
type Console struct {
	w io.Writer
}

// NewConsole creates a console reporter writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) ReportSuccess(ctx context.Context, run *domain.Run, result *domain.Result) error {
	fmt.Fprintf(c.w, "Deployment %s succeeded on network %s (deployer %s)\n",
		run.ID, run.Identity.NetworkID, run.Identity.Account)
	return c.renderRecords(result.Records())
}

func (c *Console) ReportFailure(ctx context.Context, run *domain.Run, finalized []domain.Record, cause error) error {
	fmt.Fprintf(c.w, "Deployment %s failed", run.ID)
	if run.FailedStep != "" {
		fmt.Fprintf(c.w, " at step %s", run.FailedStep)
	}
	fmt.Fprintf(c.w, ": %v\n", cause)

	if len(finalized) == 0 {
		fmt.Fprintln(c.w, "No steps were finalized.")
		return nil
	}
	fmt.Fprintln(c.w, "Already finalized:")
	return c.renderRecords(finalized)
}

func (c *Console) renderRecords(records []domain.Record) error {
	table := tablewriter.NewWriter(c.w)
	table.Header("Step", "Contract", "Address", "Transaction", "Block")
	for _, rec := range records {
		if err := table.Append([]string{
			rec.Step,
			rec.Template,
			rec.Address().String(),
			rec.Finalization.TxHash,
			strconv.FormatUint(rec.Finalization.BlockNumber, 10),
		}); err != nil {
			return fmt.Errorf("render report: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
