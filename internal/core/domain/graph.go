package domain

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Graph Errors
// =============================================================================

var (
	ErrEmptyGraph         = errors.New("dependency graph has no steps")
	ErrDuplicateStep      = errors.New("duplicate step")
	ErrUnknownDependency  = errors.New("unknown dependency")
	ErrSelfReference      = errors.New("step references its own result")
	ErrCycleDetected      = errors.New("dependency cycle detected")
	ErrInvariantViolation = errors.New("invariant violation")
)

// GraphError wraps a graph construction error with the offending step.
type GraphError struct {
	Step    string   // Step where the problem was found
	Missing string   // Referenced step that does not exist (unknown dependency)
	Cycle   []string // Steps participating in a cycle, in dependency order
	Err     error
}

func (e *GraphError) Error() string {
	switch {
	case len(e.Cycle) > 0:
		return fmt.Sprintf("%s: %s", e.Err, strings.Join(e.Cycle, " -> "))
	case e.Missing != "":
		return fmt.Sprintf("step %s: %s %q", e.Step, e.Err, e.Missing)
	case e.Step != "":
		return fmt.Sprintf("step %s: %s", e.Step, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// IsGraphError reports whether err is a graph construction error. These are
// detected before any submission and are always fatal.
func IsGraphError(err error) bool {
	return errors.Is(err, ErrEmptyGraph) ||
		errors.Is(err, ErrDuplicateStep) ||
		errors.Is(err, ErrUnknownDependency) ||
		errors.Is(err, ErrSelfReference) ||
		errors.Is(err, ErrCycleDetected)
}

// =============================================================================
// Dependency Graph
// =============================================================================

// Graph is the set of declared steps. Edges are implied by ref slots. The
// declaration order is kept because it breaks ties when planning.
type Graph struct {
	steps []Step
	index map[string]int
}

// NewGraph creates a graph from steps in declaration order.
func NewGraph(steps ...Step) (*Graph, error) {
	g := &Graph{index: make(map[string]int, len(steps))}
	for _, s := range steps {
		if err := g.Add(s); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Add appends a step to the graph.
func (g *Graph) Add(s Step) error {
	if s.Name() == "" {
		return ErrEmptyStepName
	}
	if g.index == nil {
		g.index = make(map[string]int)
	}
	if _, exists := g.index[s.Name()]; exists {
		return &GraphError{Step: s.Name(), Err: ErrDuplicateStep}
	}
	g.index[s.Name()] = len(g.steps)
	g.steps = append(g.steps, s)
	return nil
}

// Len returns the number of steps.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.steps)
}

// Steps returns the steps in declaration order.
func (g *Graph) Steps() []Step {
	if g == nil {
		return nil
	}
	out := make([]Step, len(g.steps))
	copy(out, g.steps)
	return out
}

// Step looks up a step by name.
func (g *Graph) Step(name string) (Step, bool) {
	if g == nil {
		return Step{}, false
	}
	i, ok := g.index[name]
	if !ok {
		return Step{}, false
	}
	return g.steps[i], true
}

// Position returns the declaration index of a step, or -1.
func (g *Graph) Position(name string) int {
	if g == nil {
		return -1
	}
	if i, ok := g.index[name]; ok {
		return i
	}
	return -1
}

// =============================================================================
// Execution Plan
// =============================================================================

// Plan is a total order over the graph's steps consistent with its edges.
type Plan []string

// Index returns the position of a step in the plan, or -1.
func (p Plan) Index(name string) int {
	for i, n := range p {
		if n == name {
			return i
		}
	}
	return -1
}

// String renders the plan as "a -> b -> c".
func (p Plan) String() string {
	return strings.Join(p, " -> ")
}
