package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Decision is one terminal gateway decision worth auditing: every
// response the gateway generated itself (401, 403, 404, 429, gateway
// 5xx) plus breaker rejections.
type Decision struct {
	ID       string
	Time     time.Time
	Project  string
	Path     string
	Method   string
	Status   int
	Reason   string
	Subject  string
	ClientIP string
}

// Storage persists decisions in a SQLite database.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY,
	ts         INTEGER NOT NULL,
	project    TEXT NOT NULL,
	path       TEXT NOT NULL,
	method     TEXT NOT NULL,
	status     INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	subject    TEXT NOT NULL,
	client_ip  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts);
CREATE INDEX IF NOT EXISTS idx_decisions_project ON decisions(project, ts);
`

// OpenStorage opens (and if necessary creates) the decision database at
// path, enabling WAL mode for concurrent readers.
func OpenStorage(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("audit: create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: configure database: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}

	return &Storage{
		db:     db,
		logger: slog.Default().With("component", "audit.storage"),
	}, nil
}

// Insert writes one decision.
func (s *Storage) Insert(ctx context.Context, d *Decision) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, ts, project, path, method, status, reason, subject, client_ip)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Time.Unix(), d.Project, d.Path, d.Method, d.Status, d.Reason, d.Subject, d.ClientIP,
	)
	if err != nil {
		return fmt.Errorf("audit: insert decision: %w", err)
	}
	return nil
}

// PruneBefore deletes all decisions recorded before cutoff and returns
// the number removed.
func (s *Storage) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE ts < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("audit: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit: prune rows affected: %w", err)
	}
	return n, nil
}

// Count returns the total number of stored decisions.
func (s *Storage) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("audit: count: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}
