package deployment

import (
	"fmt"

	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Argument Resolution
// =============================================================================

// ResolveArgs turns a step's argument slots into concrete values.
//
// Literal slots pass through, with ${VAR} placeholders in string values
// substituted from variables. Ref slots are replaced by the finalized address
// of the referenced step. A ref to a step that has not been recorded means
// the plan was not followed and is reported as an invariant violation.
func ResolveArgs(step domain.Step, result *domain.Result, variables map[string]string) ([]domain.Value, error) {
	args := step.Args()
	values := make([]domain.Value, 0, len(args))

	for i, arg := range args {
		if arg.IsRef() {
			addr, ok := result.Address(arg.Ref)
			if !ok {
				return nil, fmt.Errorf("%w: step %s arg %d references %s before it was finalized",
					domain.ErrInvariantViolation, step.Name(), i, arg.Ref)
			}
			values = append(values, domain.Value{Type: domain.AddressType, Value: addr})
			continue
		}

		values = append(values, domain.Value{
			Type:  arg.Type,
			Value: substituteValue(arg.Value, variables),
		})
	}

	return values, nil
}

// substituteValue applies variable substitution to strings, including
// strings nested in lists.
func substituteValue(v any, variables map[string]string) any {
	switch val := v.(type) {
	case string:
		return SubstituteVariables(val, variables)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substituteValue(item, variables)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = SubstituteVariables(item, variables)
		}
		return out
	default:
		return v
	}
}
