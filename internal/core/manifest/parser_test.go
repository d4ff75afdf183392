package manifest

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/deployer/internal/core/deployment"
	"github.com/artpar/deployer/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

const tokenVaultYAML = `
name: token-vault
variables:
  SYMBOL: VLT
steps:
  - name: Vault
    contract: SecureVault
    args:
      - ref: Auth
      - ref: Token
  - name: Auth
    contract: AuthorizationManager
  - name: Token
    contract: ERC20
    args:
      - value: "${SYMBOL}"
        type: string
      - value: 18
        type: uint8
`

const tokenVaultTOML = `
name = "token-vault"

[variables]
SYMBOL = "VLT"

[[steps]]
name = "Vault"
contract = "SecureVault"
  [[steps.args]]
  ref = "Auth"
  [[steps.args]]
  ref = "Token"

[[steps]]
name = "Auth"
contract = "AuthorizationManager"

[[steps]]
name = "Token"
contract = "ERC20"
  [[steps.args]]
  value = "${SYMBOL}"
  type = "string"
  [[steps.args]]
  value = 18
  type = "uint8"
`

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_YAML(t *testing.T) {
	m, err := Parse([]byte(tokenVaultYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "token-vault", m.Name)
	assert.Equal(t, "VLT", m.Variables["SYMBOL"])
	require.Len(t, m.Steps, 3)
	assert.Equal(t, "Vault", m.Steps[0].Name)
	assert.Equal(t, "SecureVault", m.Steps[0].Contract)
	assert.Equal(t, "Auth", m.Steps[0].Args[0].Ref)
	assert.Equal(t, 18, m.Steps[2].Args[1].Value)
}

func TestParse_TOML(t *testing.T) {
	m, err := Parse([]byte(tokenVaultTOML), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, "token-vault", m.Name)
	require.Len(t, m.Steps, 3)
	assert.Equal(t, "Token", m.Steps[0].Args[1].Ref)
	assert.Equal(t, "${SYMBOL}", m.Steps[2].Args[0].Value)
	assert.EqualValues(t, 18, m.Steps[2].Args[1].Value)
}

func TestParse_YAMLKeepsWideIntegers(t *testing.T) {
	m, err := Parse([]byte(`
steps:
  - name: Treasury
    args:
      - value: 1000000000000000000000001
        type: uint256
      - value: [1_000_000_000_000_000_000_000_001, 7]
        type: uint256[]
      - value: 0x1000000000000000000000000
        type: uint256
      - value: "1000000000000000000000001"
        type: uint256
      - value: 1.5e24
        type: uint256
      - value: 18446744073709551615
        type: uint256
`), FormatYAML)
	require.NoError(t, err)
	args := m.Steps[0].Args

	want, _ := new(big.Int).SetString("1000000000000000000000001", 10)

	wide, ok := args[0].Value.(*big.Int)
	require.True(t, ok, "got %T", args[0].Value)
	assert.Equal(t, 0, want.Cmp(wide), "got %s", wide)

	list, ok := args[1].Value.([]any)
	require.True(t, ok, "got %T", args[1].Value)
	require.Len(t, list, 2)
	inList, ok := list[0].(*big.Int)
	require.True(t, ok, "got %T", list[0])
	assert.Equal(t, 0, want.Cmp(inList))
	assert.Equal(t, 7, list[1])

	// Wide hex and quoted values stay strings, real floats stay floats; the
	// chain client parses strings exactly.
	assert.Equal(t, "0x1000000000000000000000000", args[2].Value)
	assert.Equal(t, "1000000000000000000000001", args[3].Value)
	assert.Equal(t, 1.5e24, args[4].Value)
	assert.Equal(t, uint64(18446744073709551615), args[5].Value)
}

func TestParse_YAMLAndTOMLPlanTheSame(t *testing.T) {
	fromYAML, err := Parse([]byte(tokenVaultYAML), FormatYAML)
	require.NoError(t, err)
	fromTOML, err := Parse([]byte(tokenVaultTOML), FormatTOML)
	require.NoError(t, err)

	gy, err := fromYAML.Graph()
	require.NoError(t, err)
	gt, err := fromTOML.Graph()
	require.NoError(t, err)

	planY, err := deployment.Resolve(gy)
	require.NoError(t, err)
	planT, err := deployment.Resolve(gt)
	require.NoError(t, err)

	assert.Equal(t, domain.Plan{"Auth", "Token", "Vault"}, planY)
	assert.Equal(t, planY, planT)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		format  Format
		wantErr error
	}{
		{"empty", "   \n", FormatYAML, ErrEmptyInput},
		{"bad yaml", "steps: [", FormatYAML, ErrInvalidYAML},
		{"bad toml", "steps = [", FormatTOML, ErrInvalidTOML},
		{"unknown format", "steps: []", Format("xml"), ErrUnsupportedFormat},
		{"no steps", "name: nothing", FormatYAML, ErrNoSteps},
		{"step without name", "steps:\n  - contract: X", FormatYAML, ErrStepNoName},
		{"arg without value", "steps:\n  - name: X\n    args:\n      - type: string", FormatYAML, ErrInvalidArg},
		{"arg with both", "steps:\n  - name: X\n    args:\n      - ref: Y\n        value: 1", FormatYAML, ErrInvalidArg},
		{"typed ref", "steps:\n  - name: X\n    args:\n      - ref: Y\n        type: uint256", FormatYAML, ErrInvalidArg},
		{"bad variable", "variables:\n  1BAD: x\nsteps:\n  - name: X", FormatYAML, ErrInvalidVarName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), tt.format)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestParse_ErrorCarriesField(t *testing.T) {
	_, err := Parse([]byte("steps:\n  - name: A\n  - name: B\n    args:\n      - {}"), FormatYAML)
	require.Error(t, err)

	var pErr *ParseError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "steps[1].args[0]", pErr.Field)
}

// =============================================================================
// Graph Conversion Tests
// =============================================================================

func TestManifest_Graph(t *testing.T) {
	m, err := Parse([]byte(tokenVaultYAML), FormatYAML)
	require.NoError(t, err)

	g, err := m.Graph()
	require.NoError(t, err)
	require.Equal(t, 3, g.Len())

	vault, ok := g.Step("Vault")
	require.True(t, ok)
	assert.Equal(t, "SecureVault", vault.Template())
	assert.Equal(t, []string{"Auth", "Token"}, vault.References())

	token, _ := g.Step("Token")
	args := token.Args()
	assert.Equal(t, domain.TypedLiteral("string", "${SYMBOL}"), args[0])
}

func TestManifest_GraphDuplicateStep(t *testing.T) {
	m, err := Parse([]byte("steps:\n  - name: A\n  - name: A"), FormatYAML)
	require.NoError(t, err)

	_, err = m.Graph()
	assert.ErrorIs(t, err, domain.ErrDuplicateStep)
}

func TestManifest_GraphKeepsUnknownRefsForResolver(t *testing.T) {
	m, err := Parse([]byte("steps:\n  - name: Y\n    args:\n      - ref: Z"), FormatYAML)
	require.NoError(t, err)

	g, err := m.Graph()
	require.NoError(t, err)

	_, err = deployment.Resolve(g)
	assert.ErrorIs(t, err, domain.ErrUnknownDependency)
}

// =============================================================================
// Default and Load Tests
// =============================================================================

func TestDefault(t *testing.T) {
	m := Default()
	g, err := m.Graph()
	require.NoError(t, err)

	plan, err := deployment.Resolve(g)
	require.NoError(t, err)
	assert.Equal(t, domain.Plan{"AuthorizationManager", "SecureVault"}, plan)

	vault, _ := g.Step("SecureVault")
	assert.Equal(t, []domain.Arg{domain.Ref("AuthorizationManager")}, vault.Args())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "deploy.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(tokenVaultYAML), 0644))
	m, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Len(t, m.Steps, 3)

	tomlPath := filepath.Join(dir, "deploy.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(tokenVaultTOML), 0644))
	m, err = Load(tomlPath)
	require.NoError(t, err)
	assert.Len(t, m.Steps, 3)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "deploy.ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
