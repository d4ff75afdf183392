package deployment

import (
	"testing"

	"github.com/artpar/deployer/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ResolveArgs Tests
// =============================================================================

func finalized(t *testing.T, records map[string]string) *domain.Result {
	t.Helper()
	r := domain.NewResult()
	for step, addr := range records {
		require.NoError(t, r.Record(domain.Record{
			Step:         step,
			Template:     step,
			Finalization: domain.Finalization{Address: domain.Address(addr)},
		}))
	}
	return r
}

func TestResolveArgs_NoArgs(t *testing.T) {
	values, err := ResolveArgs(domain.MustStep("X", ""), domain.NewResult(), nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestResolveArgs_RefSubstitution(t *testing.T) {
	step := domain.MustStep("Y", "SecureVault", domain.Ref("X"))
	result := finalized(t, map[string]string{"X": "addrX"})

	values, err := ResolveArgs(step, result, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.Value{{Type: "address", Value: domain.Address("addrX")}}, values)
}

func TestResolveArgs_LiteralsPassThrough(t *testing.T) {
	step := domain.MustStep("Token", "",
		domain.TypedLiteral("string", "VLT"),
		domain.Literal(18),
		domain.TypedLiteral("bool", true),
	)

	values, err := ResolveArgs(step, domain.NewResult(), nil)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, domain.Value{Type: "string", Value: "VLT"}, values[0])
	assert.Equal(t, domain.Value{Value: 18}, values[1])
	assert.Equal(t, domain.Value{Type: "bool", Value: true}, values[2])
}

func TestResolveArgs_MixedSlotsKeepOrder(t *testing.T) {
	step := domain.MustStep("Vault", "",
		domain.Literal("${NAME:-vault}"),
		domain.Ref("Auth"),
		domain.Literal([]any{"${A}", 2}),
	)
	result := finalized(t, map[string]string{"Auth": "0xauth"})

	values, err := ResolveArgs(step, result, map[string]string{"A": "alpha"})
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, "vault", values[0].Value)
	assert.Equal(t, domain.Address("0xauth"), values[1].Value)
	assert.Equal(t, []any{"alpha", 2}, values[2].Value)
}

func TestResolveArgs_RefBeforeFinalization(t *testing.T) {
	step := domain.MustStep("Y", "", domain.Ref("X"))

	_, err := ResolveArgs(step, domain.NewResult(), nil)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}
