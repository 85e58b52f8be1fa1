package report

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// StageSummary aggregates one reported stage's population across all
// completed iterations.
type StageSummary struct {
	ID     string
	Name   string
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Median float64
	P05    float64
	P95    float64
}

// Summarize computes per-stage statistics over the matrix rows. Safe for
// empty matrices (returns one zero-valued summary per stage column).
func Summarize(m *Matrix) []StageSummary {
	summaries := make([]StageSummary, m.Stages())
	for i := range summaries {
		s := StageSummary{ID: m.StageIDs[i], Name: m.StageNames[i]}
		col := m.Column(i)
		if len(col) > 0 {
			sort.Float64s(col)
			s.Mean, s.StdDev = stat.MeanStdDev(col, nil)
			if len(col) < 2 {
				s.StdDev = 0
			}
			s.Min = col[0]
			s.Max = col[len(col)-1]
			s.Median = stat.Quantile(0.5, stat.Empirical, col, nil)
			s.P05 = stat.Quantile(0.05, stat.Empirical, col, nil)
			s.P95 = stat.Quantile(0.95, stat.Empirical, col, nil)
		}
		summaries[i] = s
	}
	return summaries
}

// WriteSummary prints the per-stage statistics in a fixed-width layout.
func WriteSummary(w io.Writer, summaries []StageSummary) error {
	if _, err := fmt.Fprintln(w, "=== Recruitment Summary ==="); err != nil {
		return err
	}
	for _, s := range summaries {
		_, err := fmt.Fprintf(w, "%-8s %-20s mean=%.3f stddev=%.3f min=%.3f p05=%.3f median=%.3f p95=%.3f max=%.3f\n",
			s.ID, s.Name, s.Mean, s.StdDev, s.Min, s.P05, s.Median, s.P95, s.Max)
		if err != nil {
			return err
		}
	}
	return nil
}
