// internal/report/writer.go
// Package: report
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/mwiater/solverbench/internal/harness"
)

// File names written under the output directory.
const (
	RunsLog      = "runs.log"
	SummaryLog   = "summary.log"
	SummaryCSV   = "results_summary.csv"
	DurationsCSV = "durations.csv"
	Manifest     = "manifest.json"
)

// Writer streams the suite into the text and CSV reports. Every file is opened in
// Begin and flushed after each record, so an interrupted run leaves readable output.
type Writer struct {
	dir    string
	logger *zap.Logger

	stats harness.StatsVariant
	keys  []string

	runs      *os.File
	summary   *os.File
	csvFile   *os.File
	csv       *csv.Writer
	durFile   *os.File
	durations *csv.Writer
}

var _ harness.Sink = (*Writer)(nil)

// NewWriter returns a writer for dir. Nothing is created until Begin.
func NewWriter(dir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger}
}

// Begin creates the report files and writes the CSV headers.
func (w *Writer) Begin(plan harness.Plan) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	w.stats = plan.Config.Stats
	w.keys = plan.Config.Sweep.Keys()

	var err error
	open := func(name string) *os.File {
		if err != nil {
			return nil
		}
		var f *os.File
		f, err = os.Create(filepath.Join(w.dir, name))
		return f
	}
	w.runs = open(RunsLog)
	w.summary = open(SummaryLog)
	w.csvFile = open(SummaryCSV)
	w.durFile = open(DurationsCSV)
	if err != nil {
		w.close()
		return fmt.Errorf("open reports: %w", err)
	}

	w.csv = csv.NewWriter(w.csvFile)
	w.durations = csv.NewWriter(w.durFile)
	if err := w.writeRecord(w.csv, SummaryHeader(w.keys, w.stats)); err != nil {
		return err
	}
	return w.writeRecord(w.durations, DurationsHeader(w.keys, plan.Repetitions))
}

// RecordTrial appends the trial to the run log.
func (w *Writer) RecordTrial(t harness.Trial) error {
	if w.runs == nil {
		return errNotStarted
	}
	_, err := fmt.Fprintln(w.runs, TrialLine(t))
	return err
}

// RecordCell appends the cell to the summary log and both CSV files.
func (w *Writer) RecordCell(row harness.SummaryRow) error {
	if w.summary == nil {
		return errNotStarted
	}
	if _, err := fmt.Fprintln(w.summary, CellLine(row, w.stats)); err != nil {
		return err
	}

	lead := w.leadColumns(row)
	a := row.Aggregate
	rec := append(lead,
		strconv.Itoa(a.Counts.Win),
		strconv.Itoa(a.Counts.Loss),
		strconv.Itoa(a.Counts.Draw),
		strconv.Itoa(a.Counts.Error),
		formatSeconds(a.Mean),
	)
	if w.stats == harness.StatsFull {
		rec = append(rec,
			formatSeconds(a.Median),
			formatSeconds(a.Q1),
			formatSeconds(a.Q3),
			formatSeconds(a.Min),
			formatSeconds(a.Max),
		)
	}
	if err := w.writeRecord(w.csv, rec); err != nil {
		return err
	}

	dur := w.leadColumns(row)
	for _, d := range a.Durations {
		dur = append(dur, formatSeconds(d))
	}
	return w.writeRecord(w.durations, dur)
}

// End writes the trailer and the manifest, then closes every file.
func (w *Writer) End(res harness.SuiteResult) error {
	var errs []error
	if w.summary != nil {
		_, err := fmt.Fprint(w.summary, "\n"+Trailer(res))
		errs = append(errs, err)
	}
	errs = append(errs, w.close(), w.writeManifest(res))
	err := errors.Join(errs...)
	if err == nil {
		w.logger.Debug("reports written", zap.String("dir", w.dir), zap.Int("cells", len(res.Rows)))
	}
	return err
}

func (w *Writer) writeManifest(res harness.SuiteResult) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(w.dir, Manifest), append(b, '\n'), 0o644)
}

func (w *Writer) leadColumns(row harness.SummaryRow) []string {
	out := make([]string, 0, 1+len(w.keys))
	out = append(out, row.Case)
	for i := range w.keys {
		v := ""
		if i < len(row.Cell.Values) {
			v = row.Cell.Values[i].Value
		}
		out = append(out, v)
	}
	return out
}

func (w *Writer) writeRecord(cw *csv.Writer, rec []string) error {
	if err := cw.Write(rec); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func (w *Writer) close() error {
	var errs []error
	for _, f := range []**os.File{&w.runs, &w.summary, &w.csvFile, &w.durFile} {
		if *f != nil {
			errs = append(errs, (*f).Close())
			*f = nil
		}
	}
	return errors.Join(errs...)
}

var errNotStarted = errors.New("report writer not started")

// SummaryHeader is the header of results_summary.csv.
func SummaryHeader(keys []string, stats harness.StatsVariant) []string {
	h := append([]string{"case"}, keys...)
	h = append(h, "wins", "losses", "draws", "errors", "mean_s")
	if stats == harness.StatsFull {
		h = append(h, "median_s", "q1_s", "q3_s", "min_s", "max_s")
	}
	return h
}

// DurationsHeader is the header of durations.csv.
func DurationsHeader(keys []string, repetitions int) []string {
	h := append([]string{"case"}, keys...)
	for i := 1; i <= repetitions; i++ {
		h = append(h, "run"+strconv.Itoa(i))
	}
	return h
}
