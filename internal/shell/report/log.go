package report

import (
	"context"
	"log/slog"

	"github.com/artpar/deployer/internal/core/domain"
)

// Log writes one structured log line per finalized step.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a reporter logging through logger.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "report")}
}

func (l *Log) ReportSuccess(ctx context.Context, run *domain.Run, result *domain.Result) error {
	for _, rec := range result.Records() {
		l.logRecord(ctx, run, rec)
	}
	l.logger.InfoContext(ctx, "deployment succeeded",
		"run_id", run.ID,
		"steps", result.Len(),
		"duration", run.Duration())
	return nil
}

func (l *Log) ReportFailure(ctx context.Context, run *domain.Run, finalized []domain.Record, cause error) error {
	for _, rec := range finalized {
		l.logRecord(ctx, run, rec)
	}
	l.logger.ErrorContext(ctx, "deployment failed",
		"run_id", run.ID,
		"failed_step", run.FailedStep,
		"finalized", len(finalized),
		"error", cause)
	return nil
}

func (l *Log) logRecord(ctx context.Context, run *domain.Run, rec domain.Record) {
	l.logger.InfoContext(ctx, "deployed",
		"run_id", run.ID,
		"step", rec.Step,
		"contract", rec.Template,
		"address", rec.Address(),
		"tx", rec.Finalization.TxHash,
		"block", rec.Finalization.BlockNumber)
}
