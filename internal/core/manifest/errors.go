// Package manifest parses deployment manifests into dependency graphs.
// This is part of the Functional Core - parsing functions are pure; only
// Load touches the filesystem.
package manifest

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput        = errors.New("manifest is empty")
	ErrUnsupportedFormat = errors.New("unsupported manifest format")

	// Syntax errors
	ErrInvalidYAML = errors.New("invalid YAML syntax")
	ErrInvalidTOML = errors.New("invalid TOML syntax")

	// Structure errors
	ErrNoSteps        = errors.New("manifest must define at least one step")
	ErrStepNoName     = errors.New("step must have a name")
	ErrInvalidArg     = errors.New("invalid step argument")
	ErrInvalidVarName = errors.New("invalid variable name")
)

// ParseError wraps errors with context about where parsing failed.
type ParseError struct {
	Field   string // e.g., "steps[1].args[0]"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
