package modelfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stox-sim/stox-sim/sim"
)

const sampleYAML = `
castings:
  - name: X
    rows:
      - [1, 0]
      - [0, 1]
tree:
  name: Start
  type: direct
  children:
    - name: A
      type: caster
      casting: X
      children:
        - name: B
          type: success
          reported: true
        - name: C
          type: sink
          reported: true
`

func TestParse_SampleModel(t *testing.T) {
	tree, reg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	require.Equal(t, 1, reg.Len())
	x, ok := reg.Lookup("X")
	require.True(t, ok)
	assert.Equal(t, 2, x.Rows())
	assert.Equal(t, 2, x.Cols())
	assert.Equal(t, 1.0, x.At(0, 0))

	require.Len(t, tree.Root.Children, 1)
	a := tree.Root.Children[0]
	assert.Equal(t, sim.Caster, a.Type)
	assert.Equal(t, "X", a.Casting)
	require.Len(t, a.Children, 2)
	assert.True(t, a.Children[0].Reported)

	rep := sim.Check(tree, reg)
	assert.True(t, rep.OK, "sample model should pass the structural check")
}

func TestParse_TypeIsCaseInsensitive(t *testing.T) {
	tree, _, err := Parse([]byte("tree:\n  name: Start\n  type: SUCCESS\n"))
	require.NoError(t, err)
	assert.Equal(t, sim.Success, tree.Root.Type)
}

func TestParse_Rejections(t *testing.T) {
	cases := map[string]string{
		"unknown type":        "tree:\n  name: Start\n  type: teleport\n",
		"missing type":        "tree:\n  name: Start\n",
		"empty name":          "tree:\n  type: success\n",
		"caster without ref":  "tree:\n  name: Start\n  type: caster\n",
		"malformed document":  "tree: [not, a, stage]\n",
		"ragged casting rows": "castings:\n  - name: X\n    rows:\n      - [1, 0]\n      - [1]\ntree:\n  name: Start\n  type: success\n",
	}
	for name, doc := range cases {
		_, _, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestMarshalParse_RoundTrip(t *testing.T) {
	tree, reg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	data, err := Marshal(tree, reg)
	require.NoError(t, err)

	tree2, reg2, err := Parse(data)
	require.NoError(t, err)

	var names, names2 []string
	tree.Walk(func(s *sim.Stage) bool { names = append(names, s.Name, s.Type.String()); return true })
	tree2.Walk(func(s *sim.Stage) bool { names2 = append(names2, s.Name, s.Type.String()); return true })
	assert.Equal(t, names, names2)
	assert.Equal(t, reg.Names(), reg2.Names())
}

func TestLoadSave_RoundTrip(t *testing.T) {
	tree, reg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, Save(path, tree, reg))

	tree2, reg2, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, tree.Len(), tree2.Len())
	assert.Equal(t, reg.Len(), reg2.Len())
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
