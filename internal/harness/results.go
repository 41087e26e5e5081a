// internal/harness/results.go
// Package: harness
package harness

import (
	"encoding/json"
	"math"
	"time"

	"github.com/mwiater/solverbench/internal/solver"
)

// Add counts one outcome.
func (c *Counts) Add(o solver.Outcome) {
	switch o {
	case solver.Win:
		c.Win++
	case solver.Loss:
		c.Loss++
	case solver.Draw:
		c.Draw++
	default:
		c.Error++
	}
}

// Merge adds other into c.
func (c *Counts) Merge(other Counts) {
	c.Win += other.Win
	c.Loss += other.Loss
	c.Draw += other.Draw
	c.Error += other.Error
}

// Total is the number of trials counted.
func (c Counts) Total() int {
	return c.Win + c.Loss + c.Draw + c.Error
}

// Of returns the count for one outcome.
func (c Counts) Of(o solver.Outcome) int {
	switch o {
	case solver.Win:
		return c.Win
	case solver.Loss:
		return c.Loss
	case solver.Draw:
		return c.Draw
	default:
		return c.Error
	}
}

// Tally expands the counts back into one outcome per trial, in report column order.
func (c Counts) Tally() []solver.Outcome {
	out := make([]solver.Outcome, 0, c.Total())
	for _, o := range solver.Outcomes() {
		for range c.Of(o) {
			out = append(out, o)
		}
	}
	return out
}

// Reduce builds the aggregate of a cell's trials.
func Reduce(trials []Trial) Aggregate {
	var agg Aggregate
	agg.Durations = make([]float64, 0, len(trials))
	for _, t := range trials {
		agg.Counts.Add(t.Outcome)
		agg.Durations = append(agg.Durations, t.Duration.Seconds())
	}
	agg.Mean, agg.Std = meanStd(agg.Durations)
	agg.Median = simpleQuantile(agg.Durations, 0.50)
	agg.Q1 = simpleQuantile(agg.Durations, 0.25)
	agg.Q3 = simpleQuantile(agg.Durations, 0.75)
	agg.Min, agg.Max = minMax(agg.Durations)
	return agg
}

// MarshalJSON writes NaN statistics as null.
func (a Aggregate) MarshalJSON() ([]byte, error) {
	type alias Aggregate
	return json.Marshal(struct {
		alias
		Mean   *float64 `json:"mean_s"`
		Std    *float64 `json:"std_s"`
		Median *float64 `json:"median_s"`
		Q1     *float64 `json:"q1_s"`
		Q3     *float64 `json:"q3_s"`
		Min    *float64 `json:"min_s"`
		Max    *float64 `json:"max_s"`
	}{
		alias:  alias(a),
		Mean:   finite(a.Mean),
		Std:    finite(a.Std),
		Median: finite(a.Median),
		Q1:     finite(a.Q1),
		Q3:     finite(a.Q3),
		Min:    finite(a.Min),
		Max:    finite(a.Max),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// buildSuiteResult packs the rows with their grand totals.
func buildSuiteResult(plan Plan, rows []SummaryRow, started time.Time, finished time.Time) SuiteResult {
	var totals Counts
	for _, r := range rows {
		totals.Merge(r.Aggregate.Counts)
	}
	return SuiteResult{
		RunID:      plan.RunID,
		Config:     plan.Config,
		Rows:       rows,
		Totals:     totals,
		StartedAt:  started,
		FinishedAt: finished,
		Elapsed:    finished.Sub(started),
	}
}
