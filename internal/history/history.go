// Package history records orchestration runs and their task outcomes in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run ID does not exist.
var ErrNotFound = errors.New("run not found")

// Run kinds.
const (
	KindRepository   = "repository"
	KindOrganization = "organization"
)

// Run is one orchestration run.
type Run struct {
	ID         string
	GoalID     string
	Kind       string
	Request    string
	Targets    []string
	Success    bool
	Confidence float64
	Completion float64
	Iterations int
	StartedAt  time.Time
	Duration   time.Duration
	Errors     []string
	Tasks      []TaskOutcome
}

// TaskOutcome is the final state of one task in a run.
type TaskOutcome struct {
	TaskID     string
	TaskType   string
	Status     string
	RetryCount int
	Confidence float64
	Duration   time.Duration
	Error      string
}

// Store persists runs.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the run-history database path under root.
func DefaultPath(root string) string {
	return filepath.Join(root, ".spoc", "history.db")
}

// Open opens (creating if needed) the run-history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			goal_id TEXT,
			kind TEXT NOT NULL,
			request TEXT,
			targets TEXT,
			success INTEGER NOT NULL,
			confidence REAL,
			completion REAL,
			iterations INTEGER,
			started_at DATETIME,
			duration_ms INTEGER,
			errors TEXT
		);
		CREATE TABLE IF NOT EXISTS task_outcomes (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			task_id TEXT NOT NULL,
			task_type TEXT,
			status TEXT,
			retry_count INTEGER,
			confidence REAL,
			duration_ms INTEGER,
			error TEXT,
			PRIMARY KEY (run_id, task_id)
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces a run together with its task outcomes.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	targets, err := json.Marshal(run.Targets)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	errs, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, goal_id, kind, request, targets, success, confidence, completion, iterations, started_at, duration_ms, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.GoalID, run.Kind, run.Request, string(targets), run.Success, run.Confidence, run.Completion,
		run.Iterations, run.StartedAt, run.Duration.Milliseconds(), string(errs))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_outcomes WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear task outcomes: %w", err)
	}
	for _, t := range run.Tasks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_outcomes (run_id, task_id, task_type, status, retry_count, confidence, duration_ms, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, t.TaskID, t.TaskType, t.Status, t.RetryCount, t.Confidence, t.Duration.Milliseconds(), t.Error)
		if err != nil {
			return fmt.Errorf("insert task outcome %s: %w", t.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `id, goal_id, kind, request, targets, success, confidence, completion, iterations, started_at, duration_ms, errors`

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all runs.
// Task outcomes are not loaded.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
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

// GetRun returns a run with its task outcomes.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	run.Tasks, err = s.TaskOutcomes(ctx, id)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// TaskOutcomes returns the task outcomes recorded for a run, ordered by task ID.
func (s *Store) TaskOutcomes(ctx context.Context, runID string) ([]TaskOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, task_type, status, retry_count, confidence, duration_ms, error
		FROM task_outcomes
		WHERE run_id = ?
		ORDER BY task_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query task outcomes: %w", err)
	}
	defer rows.Close()

	var out []TaskOutcome
	for rows.Next() {
		var t TaskOutcome
		var durationMS int64
		var errMsg sql.NullString
		if err := rows.Scan(&t.TaskID, &t.TaskType, &t.Status, &t.RetryCount, &t.Confidence, &durationMS, &errMsg); err != nil {
			return nil, fmt.Errorf("scan task outcome: %w", err)
		}
		t.Duration = time.Duration(durationMS) * time.Millisecond
		t.Error = errMsg.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task outcomes: %w", err)
	}
	return out, nil
}

// DeleteRun removes a run and its task outcomes.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_outcomes WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("delete task outcomes: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var goalID, request, targets, errs sql.NullString
	var durationMS int64
	err := row.Scan(&run.ID, &goalID, &run.Kind, &request, &targets, &run.Success,
		&run.Confidence, &run.Completion, &run.Iterations, &run.StartedAt, &durationMS, &errs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.GoalID = goalID.String
	run.Request = request.String
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if targets.Valid && targets.String != "" {
		if err := json.Unmarshal([]byte(targets.String), &run.Targets); err != nil {
			return nil, fmt.Errorf("unmarshal targets: %w", err)
		}
	}
	if errs.Valid && errs.String != "" {
		if err := json.Unmarshal([]byte(errs.String), &run.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
	}
	return &run, nil
}
