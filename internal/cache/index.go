package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Index is the sqlite metadata index next to the artifact store. It is
// strictly advisory: losing it loses `chore cache status` history, not
// cache correctness, so callers treat index errors as warnings.
type Index struct {
	db   *sql.DB
	path string
}

// OpenIndex opens (and migrates) the index database under dir.
func OpenIndex(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	dbPath := filepath.Join(dir, "index.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	idx := &Index{db: db, path: dbPath}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}
	return idx, nil
}

func (i *Index) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		hash TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		last_hit_at DATETIME,
		hits INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_entries_task ON entries(task_id);
	CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at DESC);

	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		wall_ms INTEGER NOT NULL,
		total INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		cached INTEGER NOT NULL,
		exit_ok INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	`
	_, err := i.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (i *Index) Close() error {
	return i.db.Close()
}

// RecordEntry upserts metadata for a stored artifact.
func (i *Index) RecordEntry(ctx context.Context, hash, taskID string, size int64, duration time.Duration) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO entries (hash, task_id, size_bytes, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING`,
		hash, taskID, size, duration.Milliseconds(), time.Now().UTC())
	return err
}

// RecordHit bumps hit accounting for a restored artifact.
func (i *Index) RecordHit(ctx context.Context, hash string) error {
	_, err := i.db.ExecContext(ctx, `
		UPDATE entries SET hits = hits + 1, last_hit_at = ? WHERE hash = ?`,
		time.Now().UTC(), hash)
	return err
}

// EntryInfo is one row of cache metadata.
type EntryInfo struct {
	Hash      string
	TaskID    string
	SizeBytes int64
	Duration  time.Duration
	CreatedAt time.Time
	Hits      int
}

// Entries lists cache metadata, newest first.
func (i *Index) Entries(ctx context.Context, limit int) ([]EntryInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := i.db.QueryContext(ctx, `
		SELECT hash, task_id, size_bytes, duration_ms, created_at, hits
		FROM entries ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntryInfo
	for rows.Next() {
		var e EntryInfo
		var durMs int64
		if err := rows.Scan(&e.Hash, &e.TaskID, &e.SizeBytes, &durMs, &e.CreatedAt, &e.Hits); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats aggregates entry count and total size.
func (i *Index) Stats(ctx context.Context) (count int, totalBytes int64, err error) {
	row := i.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM entries`)
	err = row.Scan(&count, &totalBytes)
	return count, totalBytes, err
}

// Clean drops all entry metadata (run history is kept).
func (i *Index) Clean(ctx context.Context) error {
	_, err := i.db.ExecContext(ctx, `DELETE FROM entries`)
	return err
}

// RunInfo is one recorded run.
type RunInfo struct {
	RunID     string
	StartedAt time.Time
	Wall      time.Duration
	Total     int
	Succeeded int
	Failed    int
	Cached    int
	ExitOK    bool
}

// RecordRun appends a run to the history.
func (i *Index) RecordRun(ctx context.Context, r RunInfo) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, wall_ms, total, succeeded, failed, cached, exit_ok)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.StartedAt.UTC(), r.Wall.Milliseconds(), r.Total, r.Succeeded, r.Failed, r.Cached, r.ExitOK)
	return err
}

// Runs lists run history, newest first.
func (i *Index) Runs(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := i.db.QueryContext(ctx, `
		SELECT run_id, started_at, wall_ms, total, succeeded, failed, cached, exit_ok
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var r RunInfo
		var wallMs int64
		if err := rows.Scan(&r.RunID, &r.StartedAt, &wallMs, &r.Total, &r.Succeeded, &r.Failed, &r.Cached, &r.ExitOK); err != nil {
			return nil, err
		}
		r.Wall = time.Duration(wallMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
