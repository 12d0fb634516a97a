package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/haasonsaas/crucible/pkg/models"
)

// opTimeout bounds every index statement. The database is a local file, so
// anything slower than this means the disk is in trouble.
const opTimeout = 5 * time.Second

// Index is the sqlite catalog of sealed runs. It exists so listings do not
// parse every artifact on disk; the JSON files stay canonical and the index
// can be rebuilt from them at any time.
type Index struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	eval_name    TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	passed       INTEGER NOT NULL,
	failed       INTEGER NOT NULL,
	errors       INTEGER NOT NULL,
	total        INTEGER NOT NULL,
	path         TEXT NOT NULL
)`

// OpenIndex opens or creates the index database at path.
func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("index path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run index: %w", err)
	}
	// sqlite serializes writers; a second connection would just block on the
	// file lock.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	return &Index{db: db}, nil
}

// Close releases database resources.
func (ix *Index) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// Record upserts one sealed run. Recording an id again replaces its row, so
// rebuilding the index from artifacts is safe to repeat.
func (ix *Index) Record(trace *models.Trace, path string) error {
	if trace == nil || trace.ID == "" {
		return fmt.Errorf("trace has no id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_, err := ix.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, eval_name, started_at, completed_at, passed, failed, errors, total, path)
		VALUES (?,?,?,?,?,?,?,?,?)
	`,
		trace.ID,
		trace.EvalName,
		trace.StartedAt.UTC().Format(time.RFC3339Nano),
		trace.CompletedAt.UTC().Format(time.RFC3339Nano),
		trace.Summary.Passed,
		trace.Summary.Failed,
		trace.Summary.Errors,
		trace.Summary.Total,
		path,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RunInfo is one row of the index, enough to render a history listing.
type RunInfo struct {
	ID          string
	EvalName    string
	StartedAt   time.Time
	CompletedAt time.Time
	Summary     models.Summary
	Path        string
}

// List returns the most recent runs, newest first. A non-positive limit
// selects a default page of 20.
func (ix *Index) List(limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	rows, err := ix.db.QueryContext(ctx, `
		SELECT id, eval_name, started_at, completed_at, passed, failed, errors, total, path
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var infos []RunInfo
	for rows.Next() {
		var (
			info               RunInfo
			started, completed string
		)
		err := rows.Scan(&info.ID, &info.EvalName, &started, &completed,
			&info.Summary.Passed, &info.Summary.Failed, &info.Summary.Errors,
			&info.Summary.Total, &info.Path)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if info.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at for %s: %w", info.ID, err)
		}
		if info.CompletedAt, err = time.Parse(time.RFC3339Nano, completed); err != nil {
			return nil, fmt.Errorf("parse completed_at for %s: %w", info.ID, err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return infos, nil
}
