package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pagecheck/internal/harness"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// timeLayout has fixed width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded invocation of the runner.
type Run struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	BaseURL   string        `json:"base_url,omitempty"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Total     int           `json:"total"`
}

// ScenarioRecord is a stored scenario result.
type ScenarioRecord struct {
	RunID string `json:"run_id"`
	Seq   int    `json:"seq"`
	harness.Result
}

// RecordRun stores results as one run, atomically, and returns it.
func (s *Store) RecordRun(ctx context.Context, startedAt time.Time, baseURL string, results []harness.Result) (Run, error) {
	sum := harness.Summarize(results)
	run := Run{
		ID:        s.ids.Generate(),
		StartedAt: startedAt.UTC(),
		Duration:  time.Since(startedAt),
		BaseURL:   baseURL,
		Passed:    sum.Passed,
		Failed:    sum.Failed,
		Total:     sum.Total,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ms, passed, failed, total, base_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.Format(timeLayout), run.Duration.Milliseconds(),
		run.Passed, run.Failed, run.Total, run.BaseURL)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	for i, r := range results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scenario_results
			(run_id, seq, scenario, path, status, passed, step_index, failed_step,
			 code, message, expected, observed, screenshot, steps_run, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i, r.Scenario, r.Path, string(r.Status), r.Passed, r.StepIndex, r.FailedStep,
			string(r.Code), r.Message, r.Expected, r.Observed, r.Screenshot, r.StepsRun, r.Duration.Milliseconds())
		if err != nil {
			return Run{}, fmt.Errorf("record scenario %q: %w", r.Scenario, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}

const runColumns = `id, started_at, duration_ms, base_url, passed, failed, total`

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ReadResults returns a run's scenario results in their original order.
func (s *Store) ReadResults(ctx context.Context, runID string) ([]ScenarioRecord, error) {
	return s.queryResults(ctx, `WHERE run_id = ? ORDER BY seq ASC`, runID)
}

// ScenarioHistory returns the results of one scenario across runs, most
// recent first. limit <= 0 means all.
func (s *Store) ScenarioHistory(ctx context.Context, scenario string, limit int) ([]ScenarioRecord, error) {
	clause := `WHERE sr.scenario = ? ORDER BY r.started_at DESC, r.id DESC`
	args := []any{scenario}
	if limit > 0 {
		clause += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryResults(ctx, clause, args...)
}

func (s *Store) queryResults(ctx context.Context, clause string, args ...any) ([]ScenarioRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sr.run_id, sr.seq, sr.scenario, sr.path, sr.status, sr.passed, sr.step_index,
		       sr.failed_step, sr.code, sr.message, sr.expected, sr.observed, sr.screenshot, sr.steps_run, sr.duration_ms
		FROM scenario_results sr JOIN runs r ON r.id = sr.run_id
		`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query scenario results: %w", err)
	}
	defer rows.Close()

	records := []ScenarioRecord{}
	for rows.Next() {
		var (
			rec        ScenarioRecord
			status     string
			code       string
			durationMS int64
		)
		err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Scenario, &rec.Path, &status, &rec.Passed,
			&rec.StepIndex, &rec.FailedStep, &code, &rec.Message, &rec.Expected, &rec.Observed,
			&rec.Screenshot, &rec.StepsRun, &durationMS)
		if err != nil {
			return nil, fmt.Errorf("scan scenario result: %w", err)
		}
		rec.Status = harness.Status(status)
		rec.Code = harness.ErrorCode(code)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario results: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		durationMS int64
	)
	if err := row.Scan(&run.ID, &startedAt, &durationMS, &run.BaseURL, &run.Passed, &run.Failed, &run.Total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	run.StartedAt = t
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}
