// Package sequencer executes a resolved deployment graph against a chain
// client, one step at a time.
package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/deployer/internal/core/deployment"
	"github.com/artpar/deployer/internal/core/domain"
	"github.com/artpar/deployer/internal/shell/chain"
)

// =============================================================================
// Sequencer
// =============================================================================

// Sequencer deploys the steps of a graph in dependency order. A step is only
// submitted once every step it references is finalized.
type Sequencer struct {
	client    chain.Client
	logger    *slog.Logger
	variables map[string]string
	now       func() time.Time
	onPlan    func(domain.Plan)
	onRecord  func(domain.Record)
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithVariables sets the values substituted into ${VAR} placeholders of
// literal arguments.
func WithVariables(vars map[string]string) Option {
	return func(s *Sequencer) {
		s.variables = vars
	}
}

// WithClock overrides the time source used for FinalizedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) {
		s.now = now
	}
}

// OnPlan registers a callback invoked once the execution plan is resolved,
// before any chain call.
func OnPlan(fn func(domain.Plan)) Option {
	return func(s *Sequencer) {
		s.onPlan = fn
	}
}

// OnRecord registers a callback invoked after each step is recorded.
func OnRecord(fn func(domain.Record)) Option {
	return func(s *Sequencer) {
		s.onRecord = fn
	}
}

// New creates a sequencer that deploys through client.
func New(client chain.Client, logger *slog.Logger, opts ...Option) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sequencer{
		client: client,
		logger: logger.With("component", "sequencer"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Run
// =============================================================================

// Run resolves the execution plan of g and deploys each step in order.
//
// Graph errors are returned before the chain client is touched. The first
// submission or finalization failure aborts the run with a *StepError; no
// partial result is returned.
func (s *Sequencer) Run(ctx context.Context, g *domain.Graph) (*domain.Result, error) {
	plan, err := deployment.Resolve(g)
	if err != nil {
		return nil, err
	}
	return s.RunPlan(ctx, g, plan)
}

// RunPlan deploys the steps of g in the order of a plan already resolved by
// deployment.Resolve. A plan entry that names no step of g is an invariant
// violation, as is a repeated entry. Both are reported before the chain
// client is touched.
func (s *Sequencer) RunPlan(ctx context.Context, g *domain.Graph, plan domain.Plan) (*domain.Result, error) {
	if len(plan) != g.Len() {
		return nil, fmt.Errorf("%w: plan has %d steps, graph has %d",
			domain.ErrInvariantViolation, len(plan), g.Len())
	}
	seen := make(map[string]bool, len(plan))
	for _, name := range plan {
		if _, ok := g.Step(name); !ok {
			return nil, fmt.Errorf("%w: plan names unknown step %s", domain.ErrInvariantViolation, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: plan lists step %s twice", domain.ErrInvariantViolation, name)
		}
		seen[name] = true
	}

	s.logger.Info("execution plan resolved", "steps", len(plan), "order", plan.String())
	if s.onPlan != nil {
		s.onPlan(plan)
	}

	result := domain.NewResult()
	for i, name := range plan {
		step, _ := g.Step(name)
		if err := s.deployStep(ctx, step, result); err != nil {
			err.Finalized = result.Records()
			s.logger.Error("deployment aborted",
				"step", step.Name(),
				"position", i+1,
				"of", len(plan),
				"finalized", len(err.Finalized),
				"error", err.Err)
			return nil, err
		}
	}

	s.logger.Info("all steps finalized", "steps", result.Len())
	return result, nil
}

func (s *Sequencer) deployStep(ctx context.Context, step domain.Step, result *domain.Result) *StepError {
	fail := func(kind, err error) *StepError {
		return &StepError{Step: step.Name(), Template: step.Template(), Kind: kind, Err: err}
	}

	// Every reference is finalized at this point: the plan orders
	// dependencies first and a failed step aborts the run.
	args, err := deployment.ResolveArgs(step, result, s.variables)
	if err != nil {
		return fail(domain.ErrInvariantViolation, err)
	}

	logger := s.logger.With("step", step.Name(), "template", step.Template())
	logger.Info("submitting step", "args", len(args))

	handle, err := s.client.Instantiate(ctx, step.Template(), args)
	if err != nil {
		return fail(ErrSubmissionFailure, err)
	}

	logger.Info("awaiting finalization", "tx", handle.TxHash)

	fin, err := s.client.AwaitFinalized(ctx, handle)
	if err != nil {
		return fail(ErrFinalizationFailure, err)
	}

	rec := domain.Record{
		Step:         step.Name(),
		Template:     step.Template(),
		Finalization: fin,
		FinalizedAt:  s.now().UTC(),
	}
	if err := result.Record(rec); err != nil {
		return fail(domain.ErrInvariantViolation, err)
	}

	logger.Info("step finalized",
		"address", fin.Address,
		"tx", fin.TxHash,
		"block", fin.BlockNumber)
	if s.onRecord != nil {
		s.onRecord(rec)
	}
	return nil
}
