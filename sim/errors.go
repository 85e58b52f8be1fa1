package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrRootUnremovable is returned by Tree.Remove for the root stage.
	ErrRootUnremovable = errors.New("root stage cannot be removed")

	// ErrStageNotFound is returned when a stage is not attached to the tree.
	ErrStageNotFound = errors.New("stage not in tree")

	// ErrRunActive is returned when a run is started while one is in progress.
	ErrRunActive = errors.New("a run is already in progress")
)

// StructuralViolation is a fatal model-consistency error: a stage whose type
// disagrees with its child count, an unresolvable casting reference, or a
// casting whose column count does not match the stage's child count.
// Checking is fail-fast; the first violation halts the structural pass.
type StructuralViolation struct {
	StageID   string
	StageName string
	Reason    string
}

func (e *StructuralViolation) Error() string {
	return fmt.Sprintf("stage %q (%s) %s", e.StageName, e.StageID, e.Reason)
}

// ResolutionError is a fatal run error: a casting reference that passed
// checking could not be resolved at traversal time.
type ResolutionError struct {
	StageID   string
	StageName string
	Casting   string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("stage %q (%s): casting %q could not be resolved during run", e.StageName, e.StageID, e.Casting)
}
