package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// RowSumTolerance is the allowed deviation of a casting row sum from 1.0
// before the row is flagged. A sum below 1 means individuals vanish along
// that casting; above 1 they multiply. Both are flagged, never corrected.
const RowSumTolerance = 0.001

// RowSumWarning flags a casting row whose values do not sum to 1.0 within
// tolerance. Non-fatal: the model is still runnable.
type RowSumWarning struct {
	Casting string
	Row     int // 1-based, matching the row labels shown to modelers
	Sum     float64
}

func (w RowSumWarning) String() string {
	return fmt.Sprintf("sum of row %d of casting %q is %g, not 1", w.Row, w.Casting, w.Sum)
}

// CheckReport is the outcome of a consistency check. OK reflects the
// structural pass only; Warnings never block checking or running.
type CheckReport struct {
	OK       bool
	Err      *StructuralViolation
	Warnings []RowSumWarning
}

// Check validates the tree and registry together. The structural pass visits
// stages in pre-order and halts at the first violation: a childless stage
// must be Success or Sink, a single-child stage must be Direct, a
// multi-child stage must be a Caster whose casting resolves and has exactly
// as many columns as the stage has children. If the structural pass
// succeeds, a second pass checks every casting row's sum against 1.0 and
// collects warnings.
//
// Hierarchical ids are reassigned first so every reported violation carries
// a stable id; otherwise checking has no side effects and is idempotent.
func Check(tree *Tree, reg *Registry) *CheckReport {
	tree.AssignIDs()

	report := &CheckReport{}
	tree.Walk(func(s *Stage) bool {
		if v := checkStage(s, reg); v != nil {
			report.Err = v
			return false
		}
		return true
	})
	if report.Err != nil {
		logrus.Debugf("structural check failed: %v", report.Err)
		return report
	}
	report.OK = true

	for _, c := range reg.All() {
		for r := 0; r < c.Rows(); r++ {
			sum := c.RowSum(r)
			if math.Abs(1-sum) > RowSumTolerance {
				report.Warnings = append(report.Warnings, RowSumWarning{
					Casting: c.Name(),
					Row:     r + 1,
					Sum:     sum,
				})
			}
		}
	}
	logrus.Debugf("model checked: %d stages, %d castings, %d warnings",
		tree.Len(), reg.Len(), len(report.Warnings))
	return report
}

func checkStage(s *Stage, reg *Registry) *StructuralViolation {
	switch n := len(s.Children); {
	case n == 0:
		if !s.Type.Terminal() {
			return &StructuralViolation{
				StageID:   s.ID,
				StageName: s.Name,
				Reason:    "has no following stages, it should be type Success or type Sink",
			}
		}
	case n == 1:
		if s.Type != Direct {
			return &StructuralViolation{
				StageID:   s.ID,
				StageName: s.Name,
				Reason:    "has only one following stage, it should be type Direct",
			}
		}
	default:
		if s.Type != Caster || s.Casting == "" {
			return &StructuralViolation{
				StageID:   s.ID,
				StageName: s.Name,
				Reason:    fmt.Sprintf("has %d following stages but no casting set", n),
			}
		}
		c, ok := reg.Lookup(s.Casting)
		if !ok {
			return &StructuralViolation{
				StageID:   s.ID,
				StageName: s.Name,
				Reason:    fmt.Sprintf("references unknown casting %q", s.Casting),
			}
		}
		if c.Cols() != n {
			return &StructuralViolation{
				StageID:   s.ID,
				StageName: s.Name,
				Reason:    fmt.Sprintf("has %d following stages but its casting %q has %d columns", n, s.Casting, c.Cols()),
			}
		}
	}
	return nil
}
