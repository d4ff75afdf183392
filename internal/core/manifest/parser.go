package manifest

import (
	"bytes"
	_ "embed"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/artpar/deployer/internal/core/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultManifest []byte

// varNameRegex matches names usable in ${VAR} placeholders.
var varNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// =============================================================================
// Parser Functions
// =============================================================================

// Parse decodes a manifest in the given format and validates its structure.
// This is a pure function - no I/O, no side effects.
//
// Graph-level problems (unknown refs, cycles) are not checked here; they are
// reported by deployment.Resolve so they surface as graph errors.
func Parse(data []byte, format Format) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}

	var m Manifest
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, NewParseError("", err.Error(), ErrInvalidYAML)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, NewParseError("", err.Error(), ErrInvalidTOML)
		}
	default:
		return nil, NewParseError("", fmt.Sprintf("format %q", format), ErrUnsupportedFormat)
	}

	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads a manifest file. The format is chosen by extension: .toml is
// TOML, .yaml/.yml/.json are YAML.
func Load(path string) (*Manifest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Default returns the built-in manifest: AuthorizationManager, then
// SecureVault constructed with AuthorizationManager's address.
func Default() *Manifest {
	m, err := Parse(defaultManifest, FormatYAML)
	if err != nil {
		panic(fmt.Errorf("built-in manifest is invalid: %w", err))
	}
	return m
}

// FormatFromPath maps a file extension to a manifest format.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", NewParseError("", fmt.Sprintf("extension of %s", path), ErrUnsupportedFormat)
	}
}

// =============================================================================
// Conversion
// =============================================================================

// Graph converts the manifest into a dependency graph in declaration order.
func (m *Manifest) Graph() (*domain.Graph, error) {
	g, err := domain.NewGraph()
	if err != nil {
		return nil, err
	}
	for i, spec := range m.Steps {
		args := make([]domain.Arg, 0, len(spec.Args))
		for _, a := range spec.Args {
			args = append(args, convertArg(a))
		}
		step, err := domain.NewStep(spec.Name, spec.Contract, args...)
		if err != nil {
			return nil, NewParseError(fmt.Sprintf("steps[%d]", i), err.Error(), err)
		}
		if err := g.Add(step); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func convertArg(a ArgSpec) domain.Arg {
	if a.Ref != "" {
		return domain.Ref(strings.TrimSpace(a.Ref))
	}
	return domain.TypedLiteral(strings.TrimSpace(a.Type), normalizeValue(a.Value))
}

// normalizeValue flattens decoder-specific shapes into plain Go values.
// TOML integers decode as int64 and arrays as []interface{}; both already
// match what the chain client accepts, so only nested lists need walking.
func normalizeValue(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, len(list))
	for i, item := range list {
		out[i] = normalizeValue(item)
	}
	return out
}

// =============================================================================
// Literal Decoding
// =============================================================================

// UnmarshalYAML decodes an argument. Plain integer literals that do not fit in
// 64 bits are kept as *big.Int; the default decoding turns them into float64
// and drops the low digits.
func (a *ArgSpec) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Ref   string    `yaml:"ref"`
		Value yaml.Node `yaml:"value"`
		Type  string    `yaml:"type"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	value, err := literalFromNode(&raw.Value)
	if err != nil {
		return err
	}
	*a = ArgSpec{Ref: raw.Ref, Value: value, Type: raw.Type}
	return nil
}

func literalFromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.AliasNode:
		return literalFromNode(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, item := range n.Content {
			v, err := literalFromNode(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case yaml.ScalarNode:
		if v, ok := wideInteger(n); ok {
			return v, nil
		}
	}

	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// wideInteger reports an untagged, unquoted integer literal outside the
// int64 and uint64 ranges.
func wideInteger(n *yaml.Node) (*big.Int, bool) {
	if n.Style != 0 {
		return nil, false
	}
	if tag := n.ShortTag(); tag != "!!int" && tag != "!!float" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(strings.ReplaceAll(n.Value, "_", ""), 0)
	if !ok || v.IsInt64() || v.IsUint64() {
		return nil, false
	}
	return v, true
}

// =============================================================================
// Validation
// =============================================================================

func validate(m *Manifest) error {
	if len(m.Steps) == 0 {
		return ErrNoSteps
	}

	for name := range m.Variables {
		if !varNameRegex.MatchString(name) {
			return NewParseError("variables."+name, "variable names must match "+varNameRegex.String(), ErrInvalidVarName)
		}
	}

	for i, step := range m.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if strings.TrimSpace(step.Name) == "" {
			return NewParseError(field, "name is required", ErrStepNoName)
		}
		for j, arg := range step.Args {
			argField := fmt.Sprintf("%s.args[%d]", field, j)
			hasRef := strings.TrimSpace(arg.Ref) != ""
			hasValue := arg.Value != nil
			switch {
			case hasRef && hasValue:
				return NewParseError(argField, "set either value or ref, not both", ErrInvalidArg)
			case !hasRef && !hasValue:
				return NewParseError(argField, "value or ref is required", ErrInvalidArg)
			case hasRef && arg.Type != "" && arg.Type != domain.AddressType:
				return NewParseError(argField, "ref arguments are always addresses", ErrInvalidArg)
			}
		}
	}
	return nil
}
