// Package domain contains the deployment graph, result and run types.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Step Errors
// =============================================================================

var (
	ErrEmptyStepName   = errors.New("step name is required")
	ErrEmptyTemplate   = errors.New("step template is required")
	ErrInvalidArgument = errors.New("invalid argument slot")
)

// =============================================================================
// Address
// =============================================================================

// Address is the opaque identifier a chain assigns to a finalized deployment.
type Address string

// String returns the address as a string.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}

// =============================================================================
// Argument Slots
// =============================================================================

// ArgKind distinguishes literal argument slots from step references.
type ArgKind string

const (
	ArgLiteral ArgKind = "literal"
	ArgRef     ArgKind = "ref"
)

// AddressType is the argument type used for substituted step references.
const AddressType = "address"

// Arg is one constructor argument slot of a step. A literal slot carries a
// value (and optionally its declared type); a ref slot names another step
// whose finalized address is substituted at execution time.
type Arg struct {
	Kind  ArgKind `json:"kind"`
	Type  string  `json:"type,omitempty"`
	Value any     `json:"value,omitempty"`
	Ref   string  `json:"ref,omitempty"`
}

// Literal creates a literal argument slot with no declared type.
func Literal(value any) Arg {
	return Arg{Kind: ArgLiteral, Value: value}
}

// TypedLiteral creates a literal argument slot with a declared type.
func TypedLiteral(typ string, value any) Arg {
	return Arg{Kind: ArgLiteral, Type: typ, Value: value}
}

// Ref creates an argument slot referencing another step's address.
func Ref(step string) Arg {
	return Arg{Kind: ArgRef, Type: AddressType, Ref: step}
}

// IsRef reports whether the slot references another step.
func (a Arg) IsRef() bool {
	return a.Kind == ArgRef
}

// Validate checks that the slot is well formed.
func (a Arg) Validate() error {
	switch a.Kind {
	case ArgLiteral:
		if a.Ref != "" {
			return fmt.Errorf("%w: literal slot must not name a ref", ErrInvalidArgument)
		}
		return nil
	case ArgRef:
		if strings.TrimSpace(a.Ref) == "" {
			return fmt.Errorf("%w: ref slot must name a step", ErrInvalidArgument)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidArgument, a.Kind)
	}
}

// Value is a resolved argument handed to the chain client.
type Value struct {
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// =============================================================================
// Step
// =============================================================================

// Step is one unit of work that instantiates a single on-chain component.
// Steps are immutable once created.
type Step struct {
	name     string
	template string
	args     []Arg
}

// NewStep creates a step. The template defaults to the step name.
func NewStep(name, template string, args ...Arg) (Step, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Step{}, ErrEmptyStepName
	}
	template = strings.TrimSpace(template)
	if template == "" {
		template = name
	}
	for i, arg := range args {
		if err := arg.Validate(); err != nil {
			return Step{}, fmt.Errorf("step %s arg %d: %w", name, i, err)
		}
	}
	copied := make([]Arg, len(args))
	copy(copied, args)
	return Step{name: name, template: template, args: copied}, nil
}

// MustStep is like NewStep but panics on error. Intended for static manifests.
func MustStep(name, template string, args ...Arg) Step {
	s, err := NewStep(name, template, args...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the step identity.
func (s Step) Name() string { return s.name }

// Template returns the component template to instantiate.
func (s Step) Template() string { return s.template }

// Args returns a copy of the step's argument slots.
func (s Step) Args() []Arg {
	out := make([]Arg, len(s.args))
	copy(out, s.args)
	return out
}

// References returns the names of the steps this step depends on, in slot
// order and without duplicates.
func (s Step) References() []string {
	var refs []string
	seen := make(map[string]bool)
	for _, arg := range s.args {
		if !arg.IsRef() || seen[arg.Ref] {
			continue
		}
		seen[arg.Ref] = true
		refs = append(refs, arg.Ref)
	}
	return refs
}
