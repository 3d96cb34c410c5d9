package core

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sonde-dev/sonde/internal/engine"
	"github.com/sonde-dev/sonde/internal/graph"
	"github.com/sonde-dev/sonde/pkg/api"
)

// Store is a SQLite-backed persistence layer for run snapshots. The pipeline
// itself never touches it; callers persist the plain snapshots a run returns.
type Store struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error { return s.db.Close() }

// SaveRun inserts or updates a run row.
func (s *Store) SaveRun(ctx context.Context, id, goal string, status api.RunStatus) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, goal, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		id, goal, string(status), now, now)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// SaveResults persists the settled result map for a run.
func (s *Store) SaveResults(ctx context.Context, runID string, tasks []graph.TaskNode, results map[string]engine.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	names := make(map[string]string, len(tasks))
	for _, t := range tasks {
		names[t.ID] = t.Name
	}
	for id, r := range results {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO task_results (run_id, task_id, name, status, content, error)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, id, names[id], string(r.Status), r.Content, r.Err); err != nil {
			return fmt.Errorf("save result %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// SaveReport persists the rendered report body for a run.
func (s *Store) SaveReport(ctx context.Context, runID, title, body string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports (run_id, title, body, created_at) VALUES (?, ?, ?, ?)`,
		runID, title, body, now)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// ListRuns returns stored run snapshots, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]api.RunSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal, status, created_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []api.RunSnapshot
	for rows.Next() {
		var r api.RunSnapshot
		var created string
		if err := rows.Scan(&r.ID, &r.Goal, &r.Status, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetResults loads the stored result map for a run.
func (s *Store) GetResults(ctx context.Context, runID string) (map[string]engine.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, status, content, error FROM task_results WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("get results: %w", err)
	}
	defer rows.Close()

	out := make(map[string]engine.Result)
	for rows.Next() {
		var r engine.Result
		var status string
		if err := rows.Scan(&r.TaskID, &status, &r.Content, &r.Err); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = engine.Status(status)
		out[r.TaskID] = r
	}
	return out, rows.Err()
}
