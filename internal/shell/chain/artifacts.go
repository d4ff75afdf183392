package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// =============================================================================
// Contract Artifacts
// =============================================================================

// Artifact is a compiled contract template: its ABI and creation bytecode.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// ArtifactSource looks up compiled contract templates by name.
type ArtifactSource interface {
	Artifact(name string) (*Artifact, error)
}

// rawArtifact covers both the Hardhat layout ("bytecode": "0x...") and the
// Foundry layout ("bytecode": {"object": "0x..."}).
type rawArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

type foundryBytecode struct {
	Object string `json:"object"`
}

// ParseArtifact decodes a Hardhat or Foundry JSON artifact.
func ParseArtifact(name string, data []byte) (*Artifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, name, err)
	}
	if len(raw.ABI) == 0 {
		return nil, fmt.Errorf("%w: %s: missing abi", ErrInvalidArtifact, name)
	}

	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: abi: %v", ErrInvalidArtifact, name, err)
	}

	code, err := decodeBytecode(raw.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, name, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s: empty bytecode (abstract contract or interface?)", ErrInvalidArtifact, name)
	}

	return &Artifact{Name: name, ABI: parsed, Bytecode: code}, nil
}

// NewArtifact builds an artifact from an ABI JSON string and hex bytecode.
func NewArtifact(name, abiJSON, bytecode string) (*Artifact, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: abi: %v", ErrInvalidArtifact, name, err)
	}
	code := common.FromHex(bytecode)
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s: empty bytecode", ErrInvalidArtifact, name)
	}
	return &Artifact{Name: name, ABI: parsed, Bytecode: code}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing bytecode")
	}

	var hexCode string
	if raw[0] == '{' {
		var fb foundryBytecode
		if err := json.Unmarshal(raw, &fb); err != nil {
			return nil, fmt.Errorf("bytecode: %v", err)
		}
		hexCode = fb.Object
	} else if err := json.Unmarshal(raw, &hexCode); err != nil {
		return nil, fmt.Errorf("bytecode: %v", err)
	}

	// Unlinked library placeholders cannot be deployed as-is.
	if strings.Contains(hexCode, "__") {
		return nil, fmt.Errorf("bytecode has unlinked library references")
	}
	return common.FromHex(hexCode), nil
}

// =============================================================================
// Directory Source
// =============================================================================

// DirArtifacts resolves templates to <dir>/**/<Name>.json. The directory is
// indexed on first use.
type DirArtifacts struct {
	dir string

	once  sync.Once
	index map[string]string
	err   error
	cache map[string]*Artifact
	mu    sync.Mutex
}

// NewDirArtifacts creates a source reading artifacts under dir.
func NewDirArtifacts(dir string) *DirArtifacts {
	return &DirArtifacts{dir: dir, cache: make(map[string]*Artifact)}
}

// Artifact loads the artifact for name.
func (d *DirArtifacts) Artifact(name string) (*Artifact, error) {
	d.once.Do(d.buildIndex)
	if d.err != nil {
		return nil, d.err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if a, ok := d.cache[name]; ok {
		return a, nil
	}

	path, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (searched %s)", ErrArtifactNotFound, name, d.dir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactNotFound, name, err)
	}
	a, err := ParseArtifact(name, data)
	if err != nil {
		return nil, err
	}
	d.cache[name] = a
	return a, nil
}

func (d *DirArtifacts) buildIndex() {
	d.index = make(map[string]string)
	d.err = filepath.WalkDir(d.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if entry.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		base := entry.Name()
		if filepath.Ext(base) != ".json" || strings.HasSuffix(base, ".dbg.json") {
			return nil
		}
		name := strings.TrimSuffix(base, ".json")
		// First match in walk order wins.
		if _, seen := d.index[name]; !seen {
			d.index[name] = path
		}
		return nil
	})
	if d.err != nil {
		d.err = fmt.Errorf("index artifacts in %s: %w", d.dir, d.err)
	}
}

// =============================================================================
// In-Memory Source
// =============================================================================

// MemoryArtifacts is a fixed set of artifacts keyed by name.
type MemoryArtifacts map[string]*Artifact

// Artifact returns the artifact registered under name.
func (m MemoryArtifacts) Artifact(name string) (*Artifact, error) {
	a, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	return a, nil
}
