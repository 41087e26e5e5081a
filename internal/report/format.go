// internal/report/format.go
// Package: report
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mwiater/solverbench/internal/harness"
	"github.com/mwiater/solverbench/internal/solver"
)

const rule = "-----------------------------------------------------------------------"

// TrialLine is the run log line of a trial, e.g. "W. shape [default] #3 - 1.23s".
// Error lines carry the raw exit status.
func TrialLine(t harness.Trial) string {
	if t.Outcome == solver.Error {
		return fmt.Sprintf("%s. %s [%s] #%d (%d) - %.2fs",
			t.Outcome.Letter(), t.Case, t.Cell.Display(), t.Ordinal, t.ExitCode, t.Duration.Seconds())
	}
	return fmt.Sprintf("%s. %s [%s] #%d - %.2fs",
		t.Outcome.Letter(), t.Case, t.Cell.Display(), t.Ordinal, t.Duration.Seconds())
}

// CellLine is the summary log line of a finished cell.
func CellLine(row harness.SummaryRow, stats harness.StatsVariant) string {
	a := row.Aggregate
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]: W=%d, L=%d, D=%d, E=%d, Avg=%.2fs, Min=%.2fs, Max=%.2fs",
		row.Case, row.Cell.Display(),
		a.Counts.Win, a.Counts.Loss, a.Counts.Draw, a.Counts.Error,
		a.Mean, a.Min, a.Max)
	if stats == harness.StatsFull {
		fmt.Fprintf(&b, ", Median=%.2fs, Q1=%.2fs, Q3=%.2fs", a.Median, a.Q1, a.Q3)
	}
	return b.String()
}

// Trailer is the grand-total block closing the summary log and the console output.
func Trailer(res harness.SuiteResult) string {
	c := res.Totals
	var b strings.Builder
	b.WriteString(rule + "\n")
	if res.Interrupted {
		b.WriteString("interrupted: partial results\n")
	}
	fmt.Fprintf(&b, "(total, win, lost, draw, errors) = (%d, %d, %d, %d, %d)\n",
		c.Total(), c.Win, c.Loss, c.Draw, c.Error)
	fmt.Fprintf(&b, "Total execution time: %.2fs\n", res.Elapsed.Round(10*time.Millisecond).Seconds())
	b.WriteString(rule + "\n")
	return b.String()
}

// formatSeconds renders a statistic for the CSV files. NaN is an empty field.
func formatSeconds(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
