// internal/chart/chart.go
// Package: chart
//
// Package chart renders the PNG charts of a finished run from its summary rows.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.uber.org/zap"

	"github.com/mwiater/solverbench/internal/harness"
)

// Chart files written under the output directory.
const (
	OutcomesPNG       = "outcomes.png"
	MeanDurationPNG   = "mean_duration.png"
	DurationSpreadPNG = "duration_spread.png"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("chart: no data to plot")

var (
	colorWin   = drawing.ColorFromHex("2e7d32")
	colorLoss  = drawing.ColorFromHex("c62828")
	colorDraw  = drawing.ColorFromHex("ef8f00")
	colorError = drawing.ColorFromHex("616161")
)

const (
	height   = 600
	minWidth = 1024
	barWidth = 40
	barGap   = 24
)

// RowLabel names a row on the x axis.
func RowLabel(row harness.SummaryRow) string {
	if len(row.Cell.Values) == 0 {
		return row.Case
	}
	return fmt.Sprintf("%s [%s]", row.Case, row.Cell.Display())
}

// Outcomes draws one stacked bar per row, split into win, loss, draw and error
// shares of the row's trials.
func Outcomes(w io.Writer, rows []harness.SummaryRow) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	bars := make([]gochart.StackedBar, 0, len(rows))
	for _, r := range rows {
		c := r.Aggregate.Counts
		values := []gochart.Value{
			{Label: "win", Value: float64(c.Win), Style: fill(colorWin)},
			{Label: "loss", Value: float64(c.Loss), Style: fill(colorLoss)},
			{Label: "draw", Value: float64(c.Draw), Style: fill(colorDraw)},
			{Label: "error", Value: float64(c.Error), Style: fill(colorError)},
		}
		if c.Total() == 0 {
			// Bars are normalized to their total; an empty cell would divide by zero.
			values = []gochart.Value{{Label: "none", Value: 1, Style: fill(drawing.ColorFromHex("e0e0e0"))}}
		}
		bars = append(bars, gochart.StackedBar{Name: RowLabel(r), Width: barWidth, Values: values})
	}

	sbc := gochart.StackedBarChart{
		Title:      "Outcomes per case (win / loss / draw / error)",
		Width:      max(minWidth, len(rows)*(barWidth+barGap)+160),
		Height:     height,
		BarSpacing: barGap,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 120}},
		XAxis:      gochart.Style{TextRotationDegrees: 45},
		Bars:       bars,
	}
	return sbc.Render(gochart.PNG, w)
}

// MeanDuration draws the mean trial duration of every row as a line.
func MeanDuration(w io.Writer, rows []harness.SummaryRow) error {
	return lines(w, "Mean duration per case", rows, []seriesSpec{
		{name: "mean", color: gochart.ColorBlue, value: func(a harness.Aggregate) float64 { return a.Mean }},
	})
}

// DurationSpread draws mean, median and quartiles of every row.
func DurationSpread(w io.Writer, rows []harness.SummaryRow) error {
	return lines(w, "Duration spread per case", rows, []seriesSpec{
		{name: "mean", color: gochart.ColorBlue, value: func(a harness.Aggregate) float64 { return a.Mean }},
		{name: "median", color: gochart.ColorGreen, value: func(a harness.Aggregate) float64 { return a.Median }},
		{name: "q1", color: gochart.ColorAlternateGray, value: func(a harness.Aggregate) float64 { return a.Q1 }},
		{name: "q3", color: gochart.ColorRed, value: func(a harness.Aggregate) float64 { return a.Q3 }},
	})
}

type seriesSpec struct {
	name  string
	color drawing.Color
	value func(harness.Aggregate) float64
}

func lines(w io.Writer, title string, rows []harness.SummaryRow, specs []seriesSpec) error {
	if len(rows) == 0 {
		return ErrNoData
	}

	n := len(rows)
	ticks := make([]gochart.Tick, 0, n+1)
	for i, r := range rows {
		ticks = append(ticks, gochart.Tick{Value: float64(i + 1), Label: RowLabel(r)})
	}
	// Explicit padded range so a single row still has a non-zero width.
	minX, maxX := 0.5, float64(n)+0.5
	if n == 1 {
		maxX = 2.0
		ticks = append(ticks, gochart.Tick{Value: 2, Label: ""})
	}

	var series []gochart.Series
	maxY := 0.0
	for _, spec := range specs {
		var xs, ys []float64
		for i, r := range rows {
			v := spec.value(r.Aggregate)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			xs = append(xs, float64(i+1))
			ys = append(ys, v)
		}
		if len(xs) == 0 {
			continue
		}
		if len(xs) == 1 {
			xs = append(xs, xs[0]+0.01)
			ys = append(ys, ys[0])
		}
		maxY = max(maxY, slices.Max(ys))
		series = append(series, gochart.ContinuousSeries{
			Name:    spec.name,
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: spec.color,
				StrokeWidth: 2,
				DotColor:    spec.color,
				DotWidth:    4,
			},
		})
	}
	if len(series) == 0 {
		return ErrNoData
	}
	if maxY <= 0 {
		maxY = 1
	}

	ch := gochart.Chart{
		Title:      title,
		Width:      max(minWidth, n*(barWidth+barGap)+160),
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 120}},
		XAxis: gochart.XAxis{
			Ticks: ticks,
			Range: &gochart.ContinuousRange{Min: minX, Max: maxX},
			Style: gochart.Style{TextRotationDegrees: 45},
		},
		YAxis: gochart.YAxis{
			Name:  "seconds",
			Range: &gochart.ContinuousRange{Min: 0, Max: maxY * 1.1},
		},
		Series: series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	return ch.Render(gochart.PNG, w)
}

func fill(c drawing.Color) gochart.Style {
	return gochart.Style{FillColor: c, StrokeColor: c, StrokeWidth: 1}
}

type renderJob struct {
	name   string
	render func(io.Writer, []harness.SummaryRow) error
}

// RenderAll writes the charts for rows into dir and returns the files written.
// The spread chart is only drawn for the full stats variant. A chart that fails
// does not stop the others.
func RenderAll(dir string, rows []harness.SummaryRow, stats harness.StatsVariant, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	jobs := []renderJob{
		{OutcomesPNG, Outcomes},
		{MeanDurationPNG, MeanDuration},
	}
	if stats == harness.StatsFull {
		jobs = append(jobs, renderJob{DurationSpreadPNG, DurationSpread})
	}

	var written []string
	var errs []error
	for _, job := range jobs {
		path := filepath.Join(dir, job.name)
		if err := renderFile(path, rows, job.render); err != nil {
			logger.Warn("chart not rendered", zap.String("chart", job.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", job.name, err))
			continue
		}
		written = append(written, path)
	}
	return written, errors.Join(errs...)
}

func renderFile(path string, rows []harness.SummaryRow, render func(io.Writer, []harness.SummaryRow) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return render(f, rows)
}
