package deployment

import (
	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Dependency Resolution
// =============================================================================

// Resolve computes the execution plan for a dependency graph using Kahn's
// algorithm. Steps with no dependencies come first; among steps that are
// ready at the same time, the one declared first wins, so the same graph
// always produces the same plan.
//
// Resolve validates the graph before ordering it:
//   - the graph must have at least one step (ErrEmptyGraph)
//   - a step must not reference itself (ErrSelfReference)
//   - every reference must name a declared step (ErrUnknownDependency)
//   - the graph must be acyclic (ErrCycleDetected)
//
// Example:
//
//	// Steps: SecureVault -> AuthorizationManager
//	g, _ := domain.NewGraph(
//	    domain.MustStep("SecureVault", "", domain.Ref("AuthorizationManager")),
//	    domain.MustStep("AuthorizationManager", ""),
//	)
//	plan, _ := Resolve(g)
//	// Result: [AuthorizationManager, SecureVault]
func Resolve(g *domain.Graph) (domain.Plan, error) {
	if g.Len() == 0 {
		return nil, &domain.GraphError{Err: domain.ErrEmptyGraph}
	}
	if err := ValidateReferences(g); err != nil {
		return nil, err
	}

	steps := g.Steps()

	// Build dependency graph (in-degree per step, dependents per step)
	inDegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	for _, s := range steps {
		refs := s.References()
		inDegree[s.Name()] = len(refs)
		for _, dep := range refs {
			dependents[dep] = append(dependents[dep], s.Name())
		}
	}

	// ready holds declaration indices of steps whose dependencies are planned
	ready := make([]bool, len(steps))
	for i, s := range steps {
		if inDegree[s.Name()] == 0 {
			ready[i] = true
		}
	}

	plan := make(domain.Plan, 0, len(steps))
	for len(plan) < len(steps) {
		next := firstReady(ready)
		if next < 0 {
			break
		}
		ready[next] = false

		name := steps[next].Name()
		plan = append(plan, name)

		// Reduce in-degree for dependents
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready[g.Position(dep)] = true
			}
		}
	}

	if len(plan) < len(steps) {
		return nil, &domain.GraphError{
			Cycle: findCycle(g, plan),
			Err:   domain.ErrCycleDetected,
		}
	}

	return plan, nil
}

// ValidateReferences checks that every ref slot names another declared step.
func ValidateReferences(g *domain.Graph) error {
	for _, s := range g.Steps() {
		for _, ref := range s.References() {
			if ref == s.Name() {
				return &domain.GraphError{Step: s.Name(), Err: domain.ErrSelfReference}
			}
			if _, ok := g.Step(ref); !ok {
				return &domain.GraphError{Step: s.Name(), Missing: ref, Err: domain.ErrUnknownDependency}
			}
		}
	}
	return nil
}

// firstReady returns the lowest declaration index that is ready, or -1.
func firstReady(ready []bool) int {
	for i, ok := range ready {
		if ok {
			return i
		}
	}
	return -1
}

// findCycle returns one cycle among the steps that could not be planned,
// as a path that starts and ends with the same step.
func findCycle(g *domain.Graph, planned domain.Plan) []string {
	done := make(map[string]bool, len(planned))
	for _, name := range planned {
		done[name] = true
	}

	onStack := make(map[string]int)
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		if i, ok := onStack[name]; ok {
			cycle = append(append([]string{}, stack[i:]...), name)
			return true
		}
		if done[name] {
			return false
		}
		onStack[name] = len(stack)
		stack = append(stack, name)

		s, _ := g.Step(name)
		for _, dep := range s.References() {
			if visit(dep) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, name)
		done[name] = true
		return false
	}

	for _, s := range g.Steps() {
		if !done[s.Name()] && visit(s.Name()) {
			// The walk follows dependency edges; flip it so the path reads in
			// dependency order.
			for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
				cycle[i], cycle[j] = cycle[j], cycle[i]
			}
			return cycle
		}
	}
	return nil
}
