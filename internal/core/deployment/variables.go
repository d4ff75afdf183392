package deployment

import (
	"regexp"
	"strings"
)

// =============================================================================
// Variable Substitution
// =============================================================================

// placeholderRegex matches ${VAR} and ${VAR:-default}.
// Group 1 is the variable name, group 2 the ":-default" suffix when present.
var placeholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// SubstituteVariables replaces ${VAR} and ${VAR:-default} placeholders in a
// literal argument with manifest variables.
//
//   - ${VAR} becomes variables["VAR"], or stays untouched when unset
//   - ${VAR:-default} becomes variables["VAR"], or default when unset
//
// Example:
//
//	SubstituteVariables("${OWNER:-0x0000000000000000000000000000000000000000}", nil)
//	// Returns: "0x0000000000000000000000000000000000000000"
func SubstituteVariables(value string, variables map[string]string) string {
	if !strings.Contains(value, "${") {
		return value
	}
	return placeholderRegex.ReplaceAllStringFunc(value, func(match string) string {
		groups := placeholderRegex.FindStringSubmatch(match)
		if val, ok := variables[groups[1]]; ok {
			return val
		}
		if groups[2] != "" {
			return strings.TrimPrefix(groups[2], ":-")
		}
		return match
	})
}

// UnresolvedVariables returns the names of ${VAR} placeholders (without a
// default) that the variables map does not define.
func UnresolvedVariables(value string, variables map[string]string) []string {
	var missing []string
	for _, groups := range placeholderRegex.FindAllStringSubmatch(value, -1) {
		if groups[2] != "" {
			continue
		}
		if _, ok := variables[groups[1]]; !ok {
			missing = append(missing, groups[1])
		}
	}
	return missing
}
