package sim

import (
	"fmt"
)

// StageType is the closed set of stage kinds. A stage's type and its child
// count must agree; the Checker enforces that, not construction.
type StageType int

const (
	// Direct passes the incoming population unchanged to its sole child.
	Direct StageType = iota
	// Caster distributes the incoming population over its children
	// according to one bootstrap-drawn row of its casting table.
	Caster
	// Success is a terminal stage counting recruited individuals.
	Success
	// Sink is a terminal stage where individuals are lost.
	Sink
)

func (t StageType) String() string {
	switch t {
	case Direct:
		return "Direct"
	case Caster:
		return "Caster"
	case Success:
		return "Success"
	case Sink:
		return "Sink"
	}
	return fmt.Sprintf("StageType(%d)", int(t))
}

// Terminal reports whether the stage type ends propagation.
func (t StageType) Terminal() bool {
	return t == Success || t == Sink
}

// ParseStageType maps a type label to its StageType.
func ParseStageType(s string) (StageType, error) {
	switch s {
	case "Direct":
		return Direct, nil
	case "Caster":
		return Caster, nil
	case "Success":
		return Success, nil
	case "Sink":
		return Sink, nil
	}
	return 0, fmt.Errorf("unknown stage type %q", s)
}

// Stage is one node of the recruitment model tree: a single step in seed
// fate. The tree exclusively owns its stages; castings are referenced by
// name only.
type Stage struct {
	Name     string
	Type     StageType
	Casting  string // casting reference, meaningful only when Type == Caster
	Reported bool
	Children []*Stage

	// ID is the dotted hierarchical identifier ("1.2.1"), recomputed by
	// Tree.AssignIDs on every check. Display and diagnostics only.
	ID string

	// pop is the population that reached this stage in the current
	// iteration. Transient engine state.
	pop float64
}

// typeText returns the persisted text for the stage's type column: the type
// label for Direct/Success/Sink, the casting reference for Caster.
func (s *Stage) typeText() string {
	if s.Type == Caster {
		return s.Casting
	}
	return s.Type.String()
}

// stageFromTypeText inverts typeText: reserved labels map to their types,
// anything else is a Caster referencing a casting of that name.
func stageFromTypeText(text string) (StageType, string) {
	switch text {
	case "Direct":
		return Direct, ""
	case "Success":
		return Success, ""
	case "Sink":
		return Sink, ""
	}
	return Caster, text
}

// Tree is the rooted, ordered recruitment model. The root always exists and
// cannot be removed; it is the traversal origin for every run.
type Tree struct {
	Root *Stage
}

// NewTree creates a tree holding only a root stage. "Start" is the
// conventional root name.
func NewTree(rootName string) *Tree {
	return &Tree{Root: &Stage{Name: rootName, Type: Direct}}
}

// AddChild appends child to parent's ordered child list.
func (t *Tree) AddChild(parent, child *Stage) {
	parent.Children = append(parent.Children, child)
}

// Remove detaches stage and its whole subtree from the tree and discards it.
// The root is unremovable.
func (t *Tree) Remove(stage *Stage) error {
	if stage == t.Root {
		return ErrRootUnremovable
	}
	parent := t.parentOf(stage)
	if parent == nil {
		return fmt.Errorf("stage %q: %w", stage.Name, ErrStageNotFound)
	}
	for i, c := range parent.Children {
		if c == stage {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("stage %q: %w", stage.Name, ErrStageNotFound)
}

func (t *Tree) parentOf(stage *Stage) *Stage {
	var parent *Stage
	t.Walk(func(s *Stage) bool {
		for _, c := range s.Children {
			if c == stage {
				parent = s
				return false
			}
		}
		return true
	})
	return parent
}

// Clone returns a detached deep copy of stage for the replication workflow.
// IDs and transient state are not copied.
func (t *Tree) Clone(stage *Stage) *Stage {
	cp := &Stage{
		Name:     stage.Name,
		Type:     stage.Type,
		Casting:  stage.Casting,
		Reported: stage.Reported,
	}
	for _, c := range stage.Children {
		cp.Children = append(cp.Children, t.Clone(c))
	}
	return cp
}

// Walk visits stages in pre-order (every parent before its children).
// Returning false from fn stops the traversal.
func (t *Tree) Walk(fn func(*Stage) bool) {
	t.Root.walk(fn)
}

func (s *Stage) walk(fn func(*Stage) bool) bool {
	if !fn(s) {
		return false
	}
	for _, c := range s.Children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}

// AssignIDs recomputes every stage's hierarchical identifier: the root is
// "1", the k-th child (1-based) of a stage with id P gets "P.k". Visiting in
// pre-order guarantees each stage's id is derived from an already-assigned
// parent id. Idempotent for a fixed tree shape.
func (t *Tree) AssignIDs() {
	t.Root.ID = "1"
	t.Walk(func(s *Stage) bool {
		for i, c := range s.Children {
			c.ID = fmt.Sprintf("%s.%d", s.ID, i+1)
		}
		return true
	})
}

// ReportedStages returns the stages with the Reported flag set, in pre-order
// encounter order. This order defines the output matrix columns.
func (t *Tree) ReportedStages() []*Stage {
	var reported []*Stage
	t.Walk(func(s *Stage) bool {
		if s.Reported {
			reported = append(reported, s)
		}
		return true
	})
	return reported
}

// ClearCastingRefs blanks every Caster reference to the named casting.
// Called after a casting is removed from the registry so the next check
// flags the orphaned stages instead of resolving a stale table.
func (t *Tree) ClearCastingRefs(name string) {
	t.Walk(func(s *Stage) bool {
		if s.Type == Caster && s.Casting == name {
			s.Casting = ""
		}
		return true
	})
}

// Len returns the number of stages in the tree.
func (t *Tree) Len() int {
	n := 0
	t.Walk(func(*Stage) bool {
		n++
		return true
	})
	return n
}
