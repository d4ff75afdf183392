package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Step Tests
// =============================================================================

func TestNewStep_DefaultsTemplateToName(t *testing.T) {
	s, err := NewStep("AuthorizationManager", "")
	require.NoError(t, err)

	assert.Equal(t, "AuthorizationManager", s.Name())
	assert.Equal(t, "AuthorizationManager", s.Template())
	assert.Empty(t, s.Args())
}

func TestNewStep_EmptyName(t *testing.T) {
	_, err := NewStep("  ", "Vault")
	assert.ErrorIs(t, err, ErrEmptyStepName)
}

func TestNewStep_InvalidArg(t *testing.T) {
	_, err := NewStep("SecureVault", "", Arg{Kind: ArgRef})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewStep("SecureVault", "", Arg{Kind: "mystery"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStep_ArgsAreCopied(t *testing.T) {
	args := []Arg{Literal("a")}
	s, err := NewStep("X", "", args...)
	require.NoError(t, err)

	args[0] = Literal("changed")
	assert.Equal(t, "a", s.Args()[0].Value)

	got := s.Args()
	got[0] = Literal("changed again")
	assert.Equal(t, "a", s.Args()[0].Value)
}

func TestStep_References(t *testing.T) {
	s := MustStep("Z", "", Ref("X"), Literal(1), Ref("Y"), Ref("X"))
	assert.Equal(t, []string{"X", "Y"}, s.References())
}

func TestRef_HasAddressType(t *testing.T) {
	arg := Ref("X")
	assert.True(t, arg.IsRef())
	assert.Equal(t, AddressType, arg.Type)
}

func TestMustStep_Panics(t *testing.T) {
	assert.Panics(t, func() { MustStep("", "") })
}

func TestAddress_IsZero(t *testing.T) {
	assert.True(t, Address("").IsZero())
	assert.True(t, Address("  ").IsZero())
	assert.False(t, Address("0xabc").IsZero())
}
