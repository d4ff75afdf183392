package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/artpar/deployer/internal/core/deployment"
	"github.com/artpar/deployer/internal/core/domain"
	"github.com/artpar/deployer/internal/core/manifest"
	"github.com/artpar/deployer/internal/shell/chain"
	"github.com/artpar/deployer/internal/shell/report"
	"github.com/artpar/deployer/internal/shell/sequencer"
	"github.com/artpar/deployer/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess        = 0
	ExitConfigError    = 1
	ExitManifestError  = 2
	ExitChainError     = 3
	ExitDeployError    = 4
	ExitReportError    = 5
	ExitInvariantError = 6
)

// =============================================================================
// Runner
// =============================================================================

// Runner wires configuration, manifest, chain client and reporters into a
// single deployment run.
type Runner struct {
	cfg       *Config
	logger    *slog.Logger
	out       io.Writer
	client    chain.Client
	graph     *domain.Graph
	plan      domain.Plan
	variables map[string]string
	reporters report.Multi
	closers   []func() error
}

// RunnerOption customizes a Runner.
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	client chain.Client
}

// WithChainClient uses client instead of building one from configuration.
func WithChainClient(client chain.Client) RunnerOption {
	return func(o *runnerOptions) {
		o.client = client
	}
}

// NewRunner loads the manifest, resolves its execution plan, connects to the
// chain and opens the history store. Nothing is submitted until Run.
func NewRunner(ctx context.Context, cfg *Config, logger *slog.Logger, out io.Writer, opts ...RunnerOption) (*Runner, error) {
	var o runnerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runner{
		cfg:    cfg,
		logger: logger,
		out:    out,
	}

	// 1. Manifest
	m, err := loadManifest(cfg.Manifest.Path)
	if err != nil {
		return nil, &RunnerError{Op: "LoadManifest", Err: err, ExitCode: ExitManifestError}
	}
	r.graph, err = m.Graph()
	if err != nil {
		return nil, &RunnerError{Op: "BuildGraph", Err: err, ExitCode: ExitManifestError}
	}
	r.variables = m.Variables

	// The plan is resolved before any chain connection exists, so a cyclic or
	// dangling manifest never reaches the chain client.
	r.plan, err = deployment.Resolve(r.graph)
	if err != nil {
		fmt.Fprintf(out, "Deployment plan rejected: %v\n", err)
		return nil, &RunnerError{Op: "ResolvePlan", Err: err, ExitCode: ExitManifestError}
	}
	logger.Info("manifest loaded",
		"name", m.Name,
		"path", cfg.Manifest.Path,
		"steps", r.graph.Len(),
		"order", r.plan.String(),
	)

	// 2. Chain client
	if o.client != nil {
		r.client = o.client
	} else if err := r.connect(ctx); err != nil {
		return nil, err
	}

	// 3. Reporters
	if err := r.setupReporters(); err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}

func loadManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		return manifest.Default(), nil
	}
	return manifest.Load(path)
}

func (r *Runner) connect(ctx context.Context) error {
	artifacts := chain.NewDirArtifacts(r.cfg.Artifacts.Dir)
	evmCfg := r.cfg.Chain.EVMConfig()

	var (
		client *chain.EVMClient
		err    error
	)
	switch r.cfg.Chain.Mode {
	case ChainModeSimulated:
		client, err = chain.NewSimulated(ctx, artifacts, evmCfg, r.logger)
	default:
		evmCfg.PrivateKey, err = r.cfg.Chain.ResolvePrivateKey()
		if err != nil {
			return &RunnerError{Op: "ResolvePrivateKey", Err: err, ExitCode: ExitConfigError}
		}
		client, err = chain.Dial(ctx, evmCfg, artifacts, r.logger)
	}
	if err != nil {
		return &RunnerError{Op: "ConnectChain", Err: err, ExitCode: ExitChainError}
	}

	r.client = client
	r.closers = append(r.closers, client.Close)
	return nil
}

func (r *Runner) setupReporters() error {
	switch strings.ToLower(r.cfg.Report.Format) {
	case "log":
		r.reporters = append(r.reporters, report.NewLog(r.logger))
	default:
		r.reporters = append(r.reporters, report.NewConsole(r.out))
	}

	if r.cfg.Report.AddressBook != "" {
		r.reporters = append(r.reporters, report.NewAddressBook(r.cfg.Report.AddressBook))
	}

	if r.cfg.Store.DSN != "" {
		s, err := store.NewSQLiteStore(r.cfg.Store.DSN)
		if err != nil {
			return &RunnerError{Op: "OpenStore", Err: err, ExitCode: ExitReportError}
		}
		r.closers = append(r.closers, s.Close)
		r.reporters = append(r.reporters, report.NewHistory(s))
	}
	return nil
}

// Close releases the chain connection and the history store.
func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// =============================================================================
// Run
// =============================================================================

// Run deploys the manifest and reports the outcome.
func (r *Runner) Run(ctx context.Context) error {
	identity, err := r.client.CurrentIdentity(ctx)
	if err != nil {
		return &RunnerError{Op: "CurrentIdentity", Err: err, ExitCode: ExitChainError}
	}

	run := domain.NewRun()
	run.Identity = identity
	run.Plan = r.plan
	if err := run.Transition(domain.RunRunning); err != nil {
		return &RunnerError{Op: "StartRun", Err: err, ExitCode: ExitInvariantError}
	}

	r.logger.Info("deploying",
		"run_id", run.ID,
		"account", identity.Account,
		"network", identity.NetworkID,
	)
	fmt.Fprintf(r.out, "Deploying contracts with account %s on chain %s\n", identity.Account, identity.NetworkID)

	seq := sequencer.New(r.client, r.logger, sequencer.WithVariables(r.variables))

	result, err := seq.RunPlan(ctx, r.graph, r.plan)
	if err != nil {
		return r.fail(ctx, run, err)
	}

	if err := run.Transition(domain.RunSucceeded); err != nil {
		return &RunnerError{Op: "FinishRun", Err: err, ExitCode: ExitInvariantError}
	}
	r.logger.Info("deployment complete", "run_id", run.ID, "steps", result.Len(), "duration", run.Duration())

	if err := r.reporters.ReportSuccess(ctx, run, result); err != nil {
		return &RunnerError{Op: "Report", Err: err, ExitCode: ExitReportError}
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, run *domain.Run, cause error) error {
	var failedStep string
	var stepErr *sequencer.StepError
	if errors.As(cause, &stepErr) {
		failedStep = stepErr.Step
	}
	if err := run.Fail(failedStep, cause); err != nil {
		return &RunnerError{Op: "FailRun", Err: err, ExitCode: ExitInvariantError}
	}

	// Reporting a failure must not mask it.
	if err := r.reporters.ReportFailure(ctx, run, sequencer.FinalizedRecords(cause), cause); err != nil {
		r.logger.Error("failed to report deployment failure", "run_id", run.ID, "error", err)
	}

	return &RunnerError{Op: "Deploy", Err: cause, ExitCode: deployExitCode(cause)}
}

func deployExitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvariantViolation):
		return ExitInvariantError
	default:
		return ExitDeployError
	}
}

// =============================================================================
// Runner Error
// =============================================================================

// RunnerError represents an error during a deployment run.
type RunnerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *RunnerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *RunnerError) Unwrap() error {
	return e.Err
}
