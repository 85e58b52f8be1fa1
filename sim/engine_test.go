package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, tree *Tree, registry *Registry, params Params, seed int64) *Engine {
	t.Helper()
	eng, err := NewEngine(tree, registry, params, NewRunRand(seed))
	require.NoError(t, err)
	return eng
}

func TestParams_Validate(t *testing.T) {
	valid := Params{InitialPopulation: 100, Iterations: 4, Eps: 0.001}
	assert.NoError(t, valid.Validate())

	for name, p := range map[string]Params{
		"negative population": {InitialPopulation: -1, Iterations: 1, Eps: 0.001},
		"zero iterations":     {InitialPopulation: 1, Iterations: 0, Eps: 0.001},
		"zero eps":            {InitialPopulation: 1, Iterations: 1, Eps: 0},
		"negative eps":        {InitialPopulation: 1, Iterations: 1, Eps: -0.1},
	} {
		assert.Error(t, p.Validate(), name)
	}
}

func TestNewEngine_RefusesInconsistentTree(t *testing.T) {
	tree, _ := validModel()

	_, err := NewEngine(tree, NewRegistry(), Params{InitialPopulation: 1, Iterations: 1, Eps: 0.001}, NewRunRand(1))

	require.Error(t, err)
	var violation *StructuralViolation
	assert.ErrorAs(t, err, &violation)
}

// TestEngine_BootstrapScenario runs the canonical two-row model:
//
//	Start (Direct) → A (Caster "X", rows [1 0] and [0 1]) → {B Success, C Sink}
//
// Each iteration draws one of the two rows uniformly, so B receives either
// the full population or exactly N*eps, and C the complement.
func TestEngine_BootstrapScenario(t *testing.T) {
	tree, registry := validModel()
	params := Params{InitialPopulation: 100, Iterations: 4, Eps: 0.001}
	eng := newTestEngine(t, tree, registry, params, 42)

	matrix, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, eng.Status())

	assert.Equal(t, []string{"1.1.1", "1.1.2"}, matrix.StageIDs)
	assert.Equal(t, []string{"B", "C"}, matrix.StageNames)
	require.Len(t, matrix.Rows, 4)

	for i, row := range matrix.Rows {
		assert.Equal(t, i+1, row.Iteration)
		require.Len(t, row.Values, 2)
		b, c := row.Values[0], row.Values[1]
		if b == 100.0 {
			assert.Equal(t, 0.1, c, "iteration %d: C gets exactly N*eps", i+1)
		} else {
			assert.Equal(t, 0.1, b, "iteration %d: B gets exactly N*eps", i+1)
			assert.Equal(t, 100.0, c)
		}
	}
}

func TestEngine_EmitsExactlyIterationCountRows(t *testing.T) {
	tree, registry := validModel()
	params := Params{InitialPopulation: 50, Iterations: 17, Eps: 0.001}
	eng := newTestEngine(t, tree, registry, params, 7)

	matrix, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, matrix.Rows, 17)
	assert.Equal(t, StatusCompleted, eng.Status())
}

func TestEngine_SingleRowCastingIsDeterministic(t *testing.T) {
	// GIVEN a casting with one row and no zero cells
	tree, _ := buildDeterministicModelTree()
	registry := NewRegistry()
	x, _ := CastingFromRows("X", [][]float64{{0.25, 0.75}})
	require.NoError(t, registry.Add(x))
	params := Params{InitialPopulation: 80, Iterations: 5, Eps: 0.001}
	eng := newTestEngine(t, tree, registry, params, -1)

	matrix, err := eng.Run(context.Background())
	require.NoError(t, err)

	// THEN the distribution to the children is invariant across iterations
	for _, row := range matrix.Rows {
		assert.Equal(t, 20.0, row.Values[0])
		assert.Equal(t, 60.0, row.Values[1])
	}
}

func buildDeterministicModelTree() (*Tree, *Stage) {
	tree := NewTree("Start")
	a := &Stage{Name: "A", Type: Caster, Casting: "X"}
	tree.AddChild(tree.Root, a)
	tree.AddChild(a, &Stage{Name: "B", Type: Success, Reported: true})
	tree.AddChild(a, &Stage{Name: "C", Type: Sink, Reported: true})
	return tree, a
}

func TestEngine_DirectStagePassesPopulationUnchanged(t *testing.T) {
	tree, registry := validModel()
	tree.Root.Reported = true
	params := Params{InitialPopulation: 123.5, Iterations: 1, Eps: 0.001}
	eng := newTestEngine(t, tree, registry, params, 3)

	matrix, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"Start", "B", "C"}, matrix.StageNames)
	assert.Equal(t, 123.5, matrix.Rows[0].Values[0])
}

func TestEngine_CancellationBetweenIterations(t *testing.T) {
	tree, registry := validModel()
	params := Params{InitialPopulation: 100, Iterations: 1000, Eps: 0.001}
	eng := newTestEngine(t, tree, registry, params, 11)

	ctx, cancel := context.WithCancel(context.Background())
	run, err := eng.Start(ctx)
	require.NoError(t, err)

	// First iteration completes normally.
	row, ok := run.Next()
	require.True(t, ok)
	assert.Equal(t, 1, row.Iteration)

	// Cancellation is observed at the next iteration boundary; the emitted
	// row stays valid and no error is reported.
	cancel()
	_, ok = run.Next()
	assert.False(t, ok)
	assert.Equal(t, StatusCancelled, eng.Status())
	assert.NoError(t, run.Err())

	_, ok = run.Next()
	assert.False(t, ok, "a finished run stays finished")
}

func TestEngine_StartWhileRunningIsRefused(t *testing.T) {
	tree, registry := validModel()
	params := Params{InitialPopulation: 100, Iterations: 2, Eps: 0.001}
	eng := newTestEngine(t, tree, registry, params, 5)

	_, err := eng.Start(context.Background())
	require.NoError(t, err)

	_, err = eng.Start(context.Background())
	assert.ErrorIs(t, err, ErrRunActive)
}

func TestEngine_RunTimeResolutionFailureKeepsPartialRows(t *testing.T) {
	tree, registry := validModel()
	params := Params{InitialPopulation: 100, Iterations: 10, Eps: 0.001}
	eng := newTestEngine(t, tree, registry, params, 9)

	run, err := eng.Start(context.Background())
	require.NoError(t, err)

	_, ok := run.Next()
	require.True(t, ok)

	// The casting disappears mid-run, e.g. a race with concurrent editing.
	registry.Remove("X")

	_, ok = run.Next()
	assert.False(t, ok)
	assert.Equal(t, StatusFailed, eng.Status())

	var resErr *ResolutionError
	require.ErrorAs(t, run.Err(), &resErr)
	assert.Equal(t, "A", resErr.StageName)
	assert.Equal(t, "1.1", resErr.StageID)
	assert.Equal(t, "X", resErr.Casting)
}

func TestEngine_SequentialReuseAfterCompletion(t *testing.T) {
	tree, registry := validModel()
	params := Params{InitialPopulation: 100, Iterations: 2, Eps: 0.001}
	eng := newTestEngine(t, tree, registry, params, 2)

	first, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Rows, 2)

	// Only one run may be active at a time; a completed engine may start over.
	second, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, second.Rows, 2)
}

func TestEngine_ReportedColumnsFixedAtCheckTime(t *testing.T) {
	tree, registry := validModel()
	params := Params{InitialPopulation: 100, Iterations: 1, Eps: 0.001}
	eng := newTestEngine(t, tree, registry, params, 4)

	assert.Equal(t, []string{"1.1.1", "1.1.2"}, eng.ReportedStageIDs())
	assert.Equal(t, []string{"B", "C"}, eng.ReportedStageNames())
}
