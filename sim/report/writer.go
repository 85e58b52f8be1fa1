package report

import (
	"fmt"
	"html"
	"io"
	"strings"
)

// Table renders the matrix as rows of display cells: a metadata row with the
// run parameters, a stage-id row, a label row, then one row per iteration.
// The table is at least 5 columns wide so the metadata row always fits.
// Population values are formatted with three decimals.
func (m *Matrix) Table() [][]string {
	cols := 1 + m.Stages()
	if cols < 5 {
		cols = 5
	}
	blank := func() []string { return make([]string, cols) }

	meta := blank()
	meta[1] = "Initial"
	meta[2] = fmt.Sprintf("%g", m.InitialPopulation)
	meta[3] = "Eps"
	meta[4] = fmt.Sprintf("%g", m.Eps)

	ids := blank()
	labels := blank()
	labels[0] = "Iter"
	for i := range m.StageIDs {
		ids[i+1] = m.StageIDs[i]
		labels[i+1] = m.StageNames[i]
	}

	table := [][]string{meta, ids, labels}
	for _, row := range m.Rows {
		cells := blank()
		cells[0] = fmt.Sprintf("%4d", row.Iteration)
		for i, v := range row.Values {
			cells[i+1] = fmt.Sprintf("%10.3f", v)
		}
		table = append(table, cells)
	}
	return table
}

// WriteTSV writes the matrix as tab-separated text, one line per table row.
func WriteTSV(w io.Writer, m *Matrix) error {
	for _, row := range m.Table() {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}

// WriteHTML writes the matrix as a minimal HTML table.
func WriteHTML(w io.Writer, m *Matrix) error {
	if _, err := io.WriteString(w, "<html><table>\n"); err != nil {
		return err
	}
	for _, row := range m.Table() {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = html.EscapeString(strings.TrimSpace(cell))
		}
		line := "<tr><td>" + strings.Join(cells, "</td><td>") + "</td></tr>\n"
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "</table></html>\n")
	return err
}
