// Package history persists one row per terminal download outcome in a local
// SQLite database so past runs can be listed from the menu.
package history

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ytget/mgrab/internal/model"
	"github.com/ytget/mgrab/internal/platform"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	kind TEXT NOT NULL,
	path TEXT,
	status TEXT NOT NULL,
	message TEXT,
	attempts INTEGER NOT NULL DEFAULT 0,
	created_time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_downloads_created ON downloads(created_time);
`

const (
	statusCompleted = "completed"
)

// Entry is one recorded download.
type Entry struct {
	ID        string
	URL       string
	Kind      string
	Path      string
	Status    string
	Message   string
	Attempts  int
	CreatedAt time.Time
}

// OK reports whether the recorded download succeeded.
func (e Entry) OK() bool {
	return e.Status == statusCompleted
}

// Store is the SQLite-backed download history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path, applying WAL mode and
// the schema.
func Open(path string) (*Store, error) {
	if err := platform.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}

	// WAL keeps concurrent readers cheap; failure here is not fatal.
	db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;`)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one outcome.
func (s *Store) Record(outcome model.Outcome) error {
	status := statusCompleted
	if !outcome.OK() {
		status = string(outcome.Reason)
	}

	query := `INSERT INTO downloads (id, url, kind, path, status, message, attempts, created_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query,
		newID(), outcome.URL, string(outcome.Kind), outcome.Path,
		status, outcome.Message, outcome.Attempts, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	return nil
}

// RecordAll inserts a whole batch, keeping going past individual failures and
// returning the first error encountered.
func (s *Store) RecordAll(outcomes []model.Outcome) error {
	var firstErr error
	for _, o := range outcomes {
		if err := s.Record(o); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, url, kind, path, status, message, attempts, created_time
		FROM downloads ORDER BY created_time DESC, id DESC LIMIT ?`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var path, message sql.NullString
		if err := rows.Scan(&e.ID, &e.URL, &e.Kind, &path, &e.Status, &message, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan download row: %w", err)
		}
		e.Path = path.String
		e.Message = message.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// newID returns a time-ordered unique id. UUID v7 sorts chronologically,
// which keeps the Recent ordering stable for rows created in the same tick.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("dl-%d", time.Now().UnixNano())
	}
	return id.String()
}
