// Package store keeps a history of benchmark runs in a SQLite database so runs
// can be compared after their output directories are gone.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mwiater/solverbench/internal/harness"
)

// Store records runs, their cells and every trial.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string

	runID string
	ord   int
}

var _ harness.Sink = (*Store)(nil)

// RunInfo is one row of the runs table.
type RunInfo struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Executable  string
	CasesPath   string
	Repetitions int
	Totals      harness.Counts
	Interrupted bool
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; the suite is sequential anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		executable TEXT NOT NULL,
		cases_path TEXT NOT NULL,
		params_path TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		repetitions INTEGER NOT NULL,
		config TEXT NOT NULL,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		draws INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		elapsed_s REAL,
		interrupted INTEGER NOT NULL DEFAULT 0
	);`
	cellsTable := `
	CREATE TABLE IF NOT EXISTS cells (
		run_id TEXT NOT NULL REFERENCES runs(id),
		ord INTEGER NOT NULL,
		case_name TEXT NOT NULL,
		cell_index INTEGER NOT NULL,
		cell_label TEXT NOT NULL,
		cell_values TEXT NOT NULL,
		wins INTEGER NOT NULL,
		losses INTEGER NOT NULL,
		draws INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		mean_s REAL,
		std_s REAL,
		median_s REAL,
		q1_s REAL,
		q3_s REAL,
		min_s REAL,
		max_s REAL,
		PRIMARY KEY (run_id, ord)
	);`
	trialsTable := `
	CREATE TABLE IF NOT EXISTS trials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		case_name TEXT NOT NULL,
		cell_label TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		duration_s REAL NOT NULL,
		timed_out INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_trials_run ON trials(run_id);`

	for _, table := range []string{runsTable, cellsTable, trialsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin inserts the run.
func (s *Store) Begin(plan harness.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := json.Marshal(plan.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	c := plan.Config
	_, err = s.db.Exec(
		`INSERT INTO runs (id, started_at, executable, cases_path, params_path, output_dir, repetitions, config)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.RunID, time.Now().UTC().Format(time.RFC3339Nano),
		c.Executable, c.CasesPath, c.ParamsPath, c.OutputDir, plan.Repetitions, string(cfg),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	s.runID = plan.RunID
	s.ord = 0
	return nil
}

// RecordTrial inserts one trial.
func (s *Store) RecordTrial(t harness.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID == "" {
		return errNoRun
	}
	_, err := s.db.Exec(
		`INSERT INTO trials (run_id, case_name, cell_label, ordinal, exit_code, outcome, duration_s, timed_out)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, t.Case, t.Cell.Label(), t.Ordinal, t.ExitCode, t.Outcome.String(), t.Duration.Seconds(), t.TimedOut,
	)
	return err
}

// RecordCell inserts one aggregated cell.
func (s *Store) RecordCell(row harness.SummaryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID == "" {
		return errNoRun
	}
	values, err := json.Marshal(row.Cell.Values)
	if err != nil {
		return err
	}
	a := row.Aggregate
	_, err = s.db.Exec(
		`INSERT INTO cells (run_id, ord, case_name, cell_index, cell_label, cell_values,
		                    wins, losses, draws, errors, mean_s, std_s, median_s, q1_s, q3_s, min_s, max_s)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, s.ord, row.Case, row.Cell.Index, row.Cell.Label(), string(values),
		a.Counts.Win, a.Counts.Loss, a.Counts.Draw, a.Counts.Error,
		nullable(a.Mean), nullable(a.Std), nullable(a.Median), nullable(a.Q1), nullable(a.Q3),
		nullable(a.Min), nullable(a.Max),
	)
	if err != nil {
		return fmt.Errorf("insert cell: %w", err)
	}
	s.ord++
	return nil
}

// End stores the totals of the run.
func (s *Store) End(res harness.SuiteResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID == "" {
		return errNoRun
	}
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, wins = ?, losses = ?, draws = ?, errors = ?, elapsed_s = ?, interrupted = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		res.Totals.Win, res.Totals.Loss, res.Totals.Draw, res.Totals.Error,
		res.Elapsed.Seconds(), res.Interrupted, s.runID,
	)
	return err
}

var errNoRun = errors.New("store: no run started")

// Runs lists recorded runs, newest first.
func (s *Store) Runs(limit int) ([]RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, COALESCE(finished_at, ''), executable, cases_path, repetitions,
		        wins, losses, draws, errors, interrupted
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var r RunInfo
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Executable, &r.CasesPath, &r.Repetitions,
			&r.Totals.Win, &r.Totals.Loss, &r.Totals.Draw, &r.Totals.Error, &r.Interrupted); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished != "" {
			r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Cells reads the aggregated cells of a run back in execution order. Per-trial
// durations are not part of the result.
func (s *Store) Cells(runID string) ([]harness.SummaryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT case_name, cell_index, cell_values, wins, losses, draws, errors,
		        mean_s, std_s, median_s, q1_s, q3_s, min_s, max_s
		 FROM cells WHERE run_id = ? ORDER BY ord`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []harness.SummaryRow
	for rows.Next() {
		var r harness.SummaryRow
		var values string
		var stats [7]sql.NullFloat64
		a := &r.Aggregate
		if err := rows.Scan(&r.Case, &r.Cell.Index, &values,
			&a.Counts.Win, &a.Counts.Loss, &a.Counts.Draw, &a.Counts.Error,
			&stats[0], &stats[1], &stats[2], &stats[3], &stats[4], &stats[5], &stats[6]); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(values), &r.Cell.Values); err != nil {
			return nil, fmt.Errorf("decode cell values: %w", err)
		}
		for i, dst := range []*float64{&a.Mean, &a.Std, &a.Median, &a.Q1, &a.Q3, &a.Min, &a.Max} {
			*dst = math.NaN()
			if stats[i].Valid {
				*dst = stats[i].Float64
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TrialCount returns how many trials of a run were stored.
func (s *Store) TrialCount(runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM trials WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
