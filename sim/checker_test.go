package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validModel returns the sample tree with a matching casting registry.
func validModel() (*Tree, *Registry) {
	tree, _, _, _ := buildSampleTree()
	reg := NewRegistry()
	x, _ := CastingFromRows("X", [][]float64{{1, 0}, {0, 1}})
	_ = reg.Add(x)
	return tree, reg
}

func TestCheck_ValidModel(t *testing.T) {
	tree, reg := validModel()

	rep := Check(tree, reg)

	assert.True(t, rep.OK)
	assert.Nil(t, rep.Err)
	assert.Empty(t, rep.Warnings)
}

func TestCheck_FailFast_ReportsFirstViolationOnly(t *testing.T) {
	// GIVEN a stage with 3 children but type Direct, followed in pre-order
	// by another broken stage
	tree := NewTree("Start")
	bad := &Stage{Name: "Bad", Type: Direct}
	tree.AddChild(tree.Root, bad)
	for i := 0; i < 3; i++ {
		tree.AddChild(bad, &Stage{Name: "Leaf", Type: Success})
	}
	alsoBad := &Stage{Name: "AlsoBad", Type: Direct} // childless Direct, would also fail
	tree.AddChild(bad.Children[2], alsoBad)

	// WHEN the model is checked
	rep := Check(tree, emptyReg(t))

	// THEN the first violation in pre-order is returned, naming the stage
	require.False(t, rep.OK)
	require.NotNil(t, rep.Err)
	assert.Equal(t, "Bad", rep.Err.StageName)
	assert.Equal(t, "1.1", rep.Err.StageID)
	assert.Contains(t, rep.Err.Error(), "casting")
}

func emptyReg(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry()
}

func TestCheck_ChildlessStageMustBeTerminal(t *testing.T) {
	tree := NewTree("Start")
	leaf := &Stage{Name: "Dangling", Type: Direct}
	tree.AddChild(tree.Root, leaf)

	rep := Check(tree, emptyReg(t))

	require.NotNil(t, rep.Err)
	assert.Equal(t, "Dangling", rep.Err.StageName)
	assert.Contains(t, rep.Err.Reason, "Success or type Sink")
}

func TestCheck_SingleChildStageMustBeDirect(t *testing.T) {
	tree := NewTree("Start")
	tree.Root.Type = Caster
	tree.Root.Casting = "X"
	tree.AddChild(tree.Root, &Stage{Name: "Only", Type: Success})

	rep := Check(tree, emptyReg(t))

	require.NotNil(t, rep.Err)
	assert.Equal(t, "Start", rep.Err.StageName)
	assert.Equal(t, "1", rep.Err.StageID)
}

func TestCheck_UnresolvedCastingReference(t *testing.T) {
	tree, _ := validModel()

	rep := Check(tree, NewRegistry())

	require.NotNil(t, rep.Err)
	assert.Equal(t, "A", rep.Err.StageName)
	assert.Contains(t, rep.Err.Reason, `unknown casting "X"`)
}

func TestCheck_ColumnCountMustMatchChildCount(t *testing.T) {
	tree, _ := validModel()
	registry := NewRegistry()
	x, _ := CastingFromRows("X", [][]float64{{0.5, 0.3, 0.2}})
	require.NoError(t, registry.Add(x))

	rep := Check(tree, registry)

	require.NotNil(t, rep.Err)
	assert.Equal(t, "A", rep.Err.StageName)
	assert.Contains(t, rep.Err.Reason, "3 columns")
}

func TestCheck_RowSumWarning_DoesNotBlockStructuralResult(t *testing.T) {
	// GIVEN a structurally valid model with a casting row summing to 0.6
	tree, _ := validModel()
	registry := NewRegistry()
	x, _ := CastingFromRows("X", [][]float64{{0.3, 0.3}})
	require.NoError(t, registry.Add(x))

	rep := Check(tree, registry)

	// THEN the structural pass succeeds with exactly one warning
	assert.True(t, rep.OK)
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, "X", rep.Warnings[0].Casting)
	assert.Equal(t, 1, rep.Warnings[0].Row)
	assert.InDelta(t, 0.6, rep.Warnings[0].Sum, 1e-12)
}

func TestCheck_RowSumWithinToleranceNotFlagged(t *testing.T) {
	tree, _ := validModel()
	registry := NewRegistry()
	x, _ := CastingFromRows("X", [][]float64{{0.5, 0.4995}})
	require.NoError(t, registry.Add(x))

	rep := Check(tree, registry)

	assert.True(t, rep.OK)
	assert.Empty(t, rep.Warnings)
}

func TestCheck_Idempotent(t *testing.T) {
	tree, registry := validModel()

	first := Check(tree, registry)
	second := Check(tree, registry)

	assert.Equal(t, first, second)
}
