// Package store keeps a SQLite history of computed schedules.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dhenderson/criticalpy/internal/cpm"
)

// ErrRunNotFound is returned by LoadRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Store provides SQLite-backed persistence for schedule runs.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Run is one saved schedule computation.
type Run struct {
	ID           int64     `json:"id"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	Finish       int       `json:"finish"`
	TaskCount    int       `json:"task_count"`
	CriticalPath []int     `json:"critical_path"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	finish INTEGER NOT NULL,
	task_count INTEGER NOT NULL,
	critical_path TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS run_tasks (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	task_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	duration INTEGER NOT NULL,
	predecessor_ids TEXT NOT NULL DEFAULT '',
	early_start INTEGER NOT NULL,
	early_finish INTEGER NOT NULL,
	late_start INTEGER NOT NULL,
	late_finish INTEGER NOT NULL,
	slack INTEGER NOT NULL,
	critical INTEGER NOT NULL,
	wave INTEGER NOT NULL,
	PRIMARY KEY (run_id, task_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	logger.Debug("Opened history store.", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records a finished project and all of its tasks in one transaction.
func (s *Store) Save(ctx context.Context, source string, p *cpm.Project) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (source, created_at, finish, task_count, critical_path) VALUES (?, ?, ?, ?, ?)`,
		source, time.Now().UTC(), p.Finish(), p.Len(), joinInts(p.CriticalPath()))
	if err != nil {
		return 0, fmt.Errorf("store: insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_tasks
		(run_id, task_id, name, duration, predecessor_ids, early_start, early_finish, late_start, late_finish, slack, critical, wave)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare task insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range p.Tasks() {
		if _, err := stmt.ExecContext(ctx, runID, t.ID, t.Name, t.Duration, joinInts(t.PredecessorIDs),
			t.EarlyStart, t.EarlyFinish, t.LateStart, t.LateFinish, t.Slack, t.Critical, t.Wave); err != nil {
			return 0, fmt.Errorf("store: insert task %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	s.logger.Info("Saved schedule run.", "run_id", runID, "source", source, "tasks", p.Len())
	return runID, nil
}

// ListRuns returns all saved runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, created_at, finish, task_count, critical_path FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var path string
		if err := rows.Scan(&r.ID, &r.Source, &r.CreatedAt, &r.Finish, &r.TaskCount, &path); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		if r.CriticalPath, err = splitInts(path); err != nil {
			return nil, fmt.Errorf("store: run %d critical path: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns the summary of a single run.
func (s *Store) GetRun(ctx context.Context, runID int64) (Run, error) {
	var r Run
	var path string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, created_at, finish, task_count, critical_path FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.Source, &r.CreatedAt, &r.Finish, &r.TaskCount, &path)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("store: run %d: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("store: get run %d: %w", runID, err)
	}
	if r.CriticalPath, err = splitInts(path); err != nil {
		return Run{}, fmt.Errorf("store: run %d critical path: %w", runID, err)
	}
	return r, nil
}

// LoadRun returns the scheduled tasks of a run in ascending id order.
func (s *Store) LoadRun(ctx context.Context, runID int64) ([]cpm.ScheduledTask, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT task_id, name, duration, predecessor_ids,
		early_start, early_finish, late_start, late_finish, slack, critical, wave
		FROM run_tasks WHERE run_id = ? ORDER BY task_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: load run %d: %w", runID, err)
	}
	defer rows.Close()

	var tasks []cpm.ScheduledTask
	for rows.Next() {
		var t cpm.ScheduledTask
		var preds string
		if err := rows.Scan(&t.ID, &t.Name, &t.Duration, &preds,
			&t.EarlyStart, &t.EarlyFinish, &t.LateStart, &t.LateFinish, &t.Slack, &t.Critical, &t.Wave); err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		if t.PredecessorIDs, err = splitInts(preds); err != nil {
			return nil, fmt.Errorf("store: task %d predecessors: %w", t.ID, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DeleteRun removes a run and its tasks.
func (s *Store) DeleteRun(ctx context.Context, runID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("store: delete run %d: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: run %d: %w", runID, ErrRunNotFound)
	}
	return nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int, len(parts))
	for i, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
