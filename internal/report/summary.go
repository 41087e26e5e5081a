// internal/report/summary.go
// Package: report
package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"

	"github.com/mwiater/solverbench/internal/harness"
)

// Summary is results_summary.csv read back.
type Summary struct {
	Keys  []string
	Stats harness.StatsVariant
	Rows  []harness.SummaryRow
}

// ReadSummary parses a results_summary.csv written by Writer. Axis columns are
// whatever sits between "case" and "wins".
func ReadSummary(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Summary{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return Summary{}, fmt.Errorf("read %s: empty file", path)
	}

	header := records[0]
	winsAt := slices.Index(header, "wins")
	if len(header) == 0 || header[0] != "case" || winsAt < 1 {
		return Summary{}, fmt.Errorf("read %s: unexpected header %v", path, header)
	}
	s := Summary{Keys: slices.Clone(header[1:winsAt]), Stats: harness.StatsBasic}
	if slices.Contains(header, "median_s") {
		s.Stats = harness.StatsFull
	}
	col := func(name string) int { return slices.Index(header, name) }
	for _, name := range []string{"wins", "losses", "draws", "errors", "mean_s"} {
		if col(name) < 0 {
			return Summary{}, fmt.Errorf("read %s: missing column %q", path, name)
		}
	}

	for n, rec := range records[1:] {
		line := n + 2
		row := harness.SummaryRow{Case: rec[0], Cell: harness.Cell{Index: n}}
		for i, key := range s.Keys {
			row.Cell.Values = append(row.Cell.Values, harness.AxisValue{Key: key, Value: rec[1+i]})
		}

		a := &row.Aggregate
		for _, c := range []struct {
			name string
			dst  *int
		}{
			{"wins", &a.Counts.Win},
			{"losses", &a.Counts.Loss},
			{"draws", &a.Counts.Draw},
			{"errors", &a.Counts.Error},
		} {
			v, err := strconv.Atoi(rec[col(c.name)])
			if err != nil {
				return Summary{}, fmt.Errorf("read %s line %d: %s: %w", path, line, c.name, err)
			}
			*c.dst = v
		}

		a.Std = math.NaN()
		stats := []struct {
			name string
			dst  *float64
		}{
			{"mean_s", &a.Mean},
			{"median_s", &a.Median},
			{"q1_s", &a.Q1},
			{"q3_s", &a.Q3},
			{"min_s", &a.Min},
			{"max_s", &a.Max},
		}
		for _, st := range stats {
			i := col(st.name)
			if i < 0 {
				*st.dst = math.NaN()
				continue
			}
			v, err := parseSeconds(rec[i])
			if err != nil {
				return Summary{}, fmt.Errorf("read %s line %d: %s: %w", path, line, st.name, err)
			}
			*st.dst = v
		}
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}

func parseSeconds(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
