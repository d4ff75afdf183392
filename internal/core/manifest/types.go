package manifest

// Format identifies the encoding of a manifest.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Manifest is the declared set of deployment steps.
type Manifest struct {
	Name      string            `yaml:"name" toml:"name"`
	Variables map[string]string `yaml:"variables" toml:"variables"`
	Steps     []StepSpec        `yaml:"steps" toml:"steps"`
}

// StepSpec declares one step. Contract names the artifact to instantiate and
// defaults to Name.
type StepSpec struct {
	Name     string    `yaml:"name" toml:"name"`
	Contract string    `yaml:"contract" toml:"contract"`
	Args     []ArgSpec `yaml:"args" toml:"args"`
}

// ArgSpec declares one constructor argument: either a literal Value
// (optionally typed) or a Ref to another step's address.
type ArgSpec struct {
	Ref   string `yaml:"ref,omitempty" toml:"ref,omitempty"`
	Value any    `yaml:"value,omitempty" toml:"value,omitempty"`
	Type  string `yaml:"type,omitempty" toml:"type,omitempty"`
}
