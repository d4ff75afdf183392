// Package deployment provides pure functions for deployment planning.
//
// This package contains the functional core of the sequencer: it turns a
// declared dependency graph into an execution plan and resolves each step's
// constructor arguments. All functions are pure (no I/O, no side effects).
//
// # Functions
//
//   - Ordering: Compute a deterministic execution plan (Resolve)
//   - References: Check ref slots against the graph (ValidateReferences)
//   - Arguments: Substitute finalized addresses into ref slots (ResolveArgs)
//   - Variables: Substitute ${VAR} placeholders in literals (SubstituteVariables)
//
// # Usage
//
// The imperative shell (internal/shell/sequencer) plans once, then walks the
// plan against a chain client:
//
//	plan, err := deployment.Resolve(graph)
//	args, err := deployment.ResolveArgs(step, result, variables)
package deployment
