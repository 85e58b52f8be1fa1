// Package report holds the output side of a simulation run: the
// per-iteration population matrix, aggregate statistics, and tabular
// renderers. It stores pure data types and has no dependency on the engine.
package report

// Row is the population snapshot of one completed iteration: one value per
// reported stage, in the fixed column order established at check time.
type Row struct {
	Iteration int
	Values    []float64
}

// Matrix is the full result of a run: run metadata, column labels, and one
// row per completed iteration. A matrix is created fresh per run and is not
// mutated once the run reaches a terminal state; a cancelled or failed run
// leaves a valid partial matrix.
type Matrix struct {
	InitialPopulation float64
	Eps               float64

	// StageIDs and StageNames label the value columns, parallel slices in
	// reported-stage order.
	StageIDs   []string
	StageNames []string

	Rows []Row
}

// NewMatrix creates an empty result matrix for a run over the given
// reported-stage columns.
func NewMatrix(initial, eps float64, stageIDs, stageNames []string) *Matrix {
	return &Matrix{
		InitialPopulation: initial,
		Eps:               eps,
		StageIDs:          append([]string(nil), stageIDs...),
		StageNames:        append([]string(nil), stageNames...),
		Rows:              make([]Row, 0),
	}
}

// Append adds one completed iteration's row.
func (m *Matrix) Append(row Row) {
	m.Rows = append(m.Rows, row)
}

// Stages returns the number of reported-stage columns.
func (m *Matrix) Stages() int { return len(m.StageIDs) }

// Column returns all iteration values for one reported-stage column.
func (m *Matrix) Column(i int) []float64 {
	col := make([]float64, len(m.Rows))
	for r, row := range m.Rows {
		col[r] = row.Values[i]
	}
	return col
}
