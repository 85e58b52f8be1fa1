// Package modelfile loads and saves recruitment models as YAML documents.
// The YAML form is the human-editable exchange format produced by model
// editors; the binary form (sim.Encode/Decode) is the compact persisted
// form. Both describe the same model: a stage tree plus named castings.
package modelfile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stox-sim/stox-sim/sim"
)

// Model is the top-level YAML document.
type Model struct {
	Version  string        `yaml:"version,omitempty"`
	Castings []CastingSpec `yaml:"castings"`
	Tree     StageSpec     `yaml:"tree"`
}

// CastingSpec is one named casting table, row-major.
type CastingSpec struct {
	Name string      `yaml:"name"`
	Rows [][]float64 `yaml:"rows"`
}

// StageSpec is one stage node. Type is one of direct, caster, success, sink
// (case-insensitive); casting is required for caster stages.
type StageSpec struct {
	Name     string      `yaml:"name"`
	Type     string      `yaml:"type"`
	Casting  string      `yaml:"casting,omitempty"`
	Reported bool        `yaml:"reported,omitempty"`
	Children []StageSpec `yaml:"children,omitempty"`
}

// Parse decodes a YAML model document into a stage tree and casting
// registry. Parsing checks document well-formedness only; model consistency
// is the checker's job.
func Parse(data []byte) (*sim.Tree, *sim.Registry, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("parsing model YAML: %w", err)
	}

	reg := sim.NewRegistry()
	for _, cs := range m.Castings {
		c, err := sim.CastingFromRows(cs.Name, cs.Rows)
		if err != nil {
			return nil, nil, err
		}
		if err := reg.Add(c); err != nil {
			return nil, nil, err
		}
	}

	root, err := buildStage(m.Tree)
	if err != nil {
		return nil, nil, err
	}
	return &sim.Tree{Root: root}, reg, nil
}

func buildStage(spec StageSpec) (*sim.Stage, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("stage with empty name")
	}
	typ, err := parseType(spec)
	if err != nil {
		return nil, err
	}
	s := &sim.Stage{
		Name:     spec.Name,
		Type:     typ,
		Casting:  spec.Casting,
		Reported: spec.Reported,
	}
	for _, cs := range spec.Children {
		child, err := buildStage(cs)
		if err != nil {
			return nil, err
		}
		s.Children = append(s.Children, child)
	}
	return s, nil
}

func parseType(spec StageSpec) (sim.StageType, error) {
	switch strings.ToLower(spec.Type) {
	case "direct":
		return sim.Direct, nil
	case "caster":
		if spec.Casting == "" {
			return 0, fmt.Errorf("stage %q: caster stage without a casting reference", spec.Name)
		}
		return sim.Caster, nil
	case "success":
		return sim.Success, nil
	case "sink":
		return sim.Sink, nil
	case "":
		return 0, fmt.Errorf("stage %q: missing type", spec.Name)
	}
	return 0, fmt.Errorf("stage %q: unknown type %q", spec.Name, spec.Type)
}

// Marshal encodes a stage tree and casting registry as a YAML document.
func Marshal(tree *sim.Tree, reg *sim.Registry) ([]byte, error) {
	m := Model{Version: "1", Tree: dumpStage(tree.Root)}
	for _, c := range reg.All() {
		cs := CastingSpec{Name: c.Name()}
		for r := 0; r < c.Rows(); r++ {
			row := make([]float64, c.Cols())
			for col := 0; col < c.Cols(); col++ {
				row[col] = c.At(r, col)
			}
			cs.Rows = append(cs.Rows, row)
		}
		m.Castings = append(m.Castings, cs)
	}
	return yaml.Marshal(&m)
}

func dumpStage(s *sim.Stage) StageSpec {
	spec := StageSpec{
		Name:     s.Name,
		Type:     strings.ToLower(s.Type.String()),
		Casting:  s.Casting,
		Reported: s.Reported,
	}
	for _, c := range s.Children {
		spec.Children = append(spec.Children, dumpStage(c))
	}
	return spec
}

// Load reads and parses a YAML model file.
func Load(path string) (*sim.Tree, *sim.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading model file: %w", err)
	}
	return Parse(data)
}

// Save writes the model to path as YAML.
func Save(path string, tree *sim.Tree, reg *sim.Registry) error {
	data, err := Marshal(tree, reg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
