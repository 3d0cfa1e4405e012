// Package history records finished sessions in a local SQLite database so
// past dictations and meetings can be inspected after the fact.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one completed (or failed) session.
type Entry struct {
	ID         string
	Kind       string
	State      string // final state: done, failed, cancelled, discarded
	StartedAt  time.Time
	Duration   time.Duration
	OutputPath string // meeting directory, empty for dictation
	Error      string
}

// Store persists session history.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	state TEXT NOT NULL,
	startedAt REAL NOT NULL,
	durationMs INTEGER NOT NULL,
	outputPath TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sessions_startedAt ON sessions(startedAt);
`

// Open opens (creating if needed) the history database with WAL journaling.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a finished session.
func (s *Store) Record(e Entry) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, kind, state, startedAt, durationMs, outputPath, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Kind, e.State, float64(e.StartedAt.UnixMilli())/1000.0,
		e.Duration.Milliseconds(), e.OutputPath, e.Error)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// Recent returns the newest n sessions, most recent first.
func (s *Store) Recent(n int) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, state, startedAt, durationMs, outputPath, error
		FROM sessions
		ORDER BY startedAt DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedAt float64
		var durationMs int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.State, &startedAt, &durationMs, &e.OutputPath, &e.Error); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		e.StartedAt = timeFromUnix(startedAt)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func timeFromUnix(sec float64) time.Time {
	return time.UnixMilli(int64(sec * 1000)).UTC()
}
