package sim

import (
	"fmt"
	"sort"
)

// Casting is an empirical stochastic transition table. Each row is one
// observed multinomial casting event over the columns (successor stages).
// Rows are kept as recorded in the field data; they are never renormalized.
type Casting struct {
	name string
	data [][]float64
}

// NewCasting creates a zero-filled rows x cols casting table.
func NewCasting(name string, rows, cols int) *Casting {
	data := make([][]float64, rows)
	for r := range data {
		data[r] = make([]float64, cols)
	}
	return &Casting{name: name, data: data}
}

// CastingFromRows creates a casting table from row-major values.
// All rows must have the same length.
func CastingFromRows(name string, rows [][]float64) (*Casting, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("casting %q: no rows", name)
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, fmt.Errorf("casting %q: no columns", name)
	}
	data := make([][]float64, len(rows))
	for r, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("casting %q: row %d has %d columns, want %d", name, r+1, len(row), cols)
		}
		data[r] = append([]float64(nil), row...)
	}
	return &Casting{name: name, data: data}, nil
}

func (c *Casting) Name() string { return c.name }
func (c *Casting) Rows() int    { return len(c.data) }

func (c *Casting) Cols() int {
	if len(c.data) == 0 {
		return 0
	}
	return len(c.data[0])
}

// At returns the transition value at (row, col). Out-of-range access panics,
// the same as indexing a slice.
func (c *Casting) At(row, col int) float64 {
	return c.data[row][col]
}

// RowSum returns the sum of all values in a row.
func (c *Casting) RowSum(row int) float64 {
	var sum float64
	for _, v := range c.data[row] {
		sum += v
	}
	return sum
}

// Set writes a transition value. The value is clamped to [0,1], and if the
// row sum would exceed 1.0 the value being set is reduced so the sum caps at
// exactly 1.0. Other cells are never touched.
func (c *Casting) Set(row, col int, v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	rest := c.RowSum(row) - c.data[row][col]
	if rest+v > 1 {
		v = 1 - rest
	}
	c.data[row][col] = v
}

// Copy returns a deep copy of the casting under a new name.
func (c *Casting) Copy(name string) *Casting {
	data := make([][]float64, len(c.data))
	for r, row := range c.data {
		data[r] = append([]float64(nil), row...)
	}
	return &Casting{name: name, data: data}
}

// reservedNames are stage type labels that cannot double as casting names,
// since the persisted form stores a stage's type and its casting reference in
// the same text field.
var reservedNames = map[string]bool{
	"Direct":  true,
	"Success": true,
	"Sink":    true,
}

// ReservedCastingName reports whether name collides with a stage type label.
func ReservedCastingName(name string) bool {
	return reservedNames[name]
}

// Registry is the flat, name-keyed collection owning all casting tables.
// Stages reference castings by name only; the registry is independent of any
// stage tree. Insertion order is preserved for serialization.
type Registry struct {
	order  []*Casting
	byName map[string]*Casting
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Casting)}
}

// Add registers a casting table. Empty, reserved, and duplicate names are
// rejected.
func (reg *Registry) Add(c *Casting) error {
	if c.name == "" {
		return fmt.Errorf("casting name must not be empty")
	}
	if ReservedCastingName(c.name) {
		return fmt.Errorf("casting name %q is reserved", c.name)
	}
	if _, ok := reg.byName[c.name]; ok {
		return fmt.Errorf("casting %q already exists", c.name)
	}
	reg.order = append(reg.order, c)
	reg.byName[c.name] = c
	return nil
}

// Lookup resolves a casting by name.
func (reg *Registry) Lookup(name string) (*Casting, bool) {
	c, ok := reg.byName[name]
	return c, ok
}

// Remove deletes a casting by name and reports whether it existed. Clearing
// stage references to the removed casting is the caller's responsibility
// (see Tree.ClearCastingRefs).
func (reg *Registry) Remove(name string) bool {
	if _, ok := reg.byName[name]; !ok {
		return false
	}
	delete(reg.byName, name)
	for i, c := range reg.order {
		if c.name == name {
			reg.order = append(reg.order[:i], reg.order[i+1:]...)
			break
		}
	}
	return true
}

// Rename changes a casting's name, subject to the same rules as Add.
func (reg *Registry) Rename(oldName, newName string) error {
	c, ok := reg.byName[oldName]
	if !ok {
		return fmt.Errorf("casting %q does not exist", oldName)
	}
	if newName == "" {
		return fmt.Errorf("casting name must not be empty")
	}
	if ReservedCastingName(newName) {
		return fmt.Errorf("casting name %q is reserved", newName)
	}
	if _, ok := reg.byName[newName]; ok {
		return fmt.Errorf("casting %q already exists", newName)
	}
	delete(reg.byName, oldName)
	c.name = newName
	reg.byName[newName] = c
	return nil
}

func (reg *Registry) Len() int { return len(reg.order) }

// All returns the castings in insertion order.
func (reg *Registry) All() []*Casting {
	return append([]*Casting(nil), reg.order...)
}

// Names returns all casting names sorted alphabetically.
func (reg *Registry) Names() []string {
	names := make([]string, 0, len(reg.order))
	for _, c := range reg.order {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}
