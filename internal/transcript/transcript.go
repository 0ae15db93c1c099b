// Package transcript keeps an audit log of the messages produced by each run.
// It is write-only from the pipelines' point of view: no run reads it back.
// If opening the DB or executing queries fails, the store falls back to in-memory storage.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/reflexion-go/internal/history"
	"github.com/comigor/reflexion-go/internal/logger"
)

// Entry is one recorded message.
type Entry struct {
	ID       int64
	RunID    string
	Pipeline string
	Message  history.Message
}

// Store records messages in SQLite, keeping an in-memory copy as fallback.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entries []Entry // in-memory fallback
	nextID  int64
}

// Open opens (or creates) the transcript database at path. A database that
// cannot be opened is logged and the store keeps working in memory.
func Open(path string) *Store {
	s := &Store{}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory transcript", "error", err)
		return s
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        pipeline TEXT NOT NULL,
        role TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );`); err != nil {
		logger.L.Warn("sqlite table creation failed; using in-memory transcript", "error", err)
		_ = db.Close()
		return s
	}
	logger.L.Info("sqlite transcript DB initialized", "path", path)
	s.db = db
	return s
}

// Persistent reports whether the store is backed by SQLite.
func (s *Store) Persistent() bool { return s.db != nil }

// Record stores one message of a run.
func (s *Store) Record(ctx context.Context, runID, pipeline string, msg history.Message) error {
	if s.db != nil {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO messages (run_id, pipeline, role, content, created_at) VALUES (?,?,?,?,?);`,
			runID, pipeline, string(msg.Role), msg.Content, msg.CreatedAt.UTC())
		if err == nil {
			return nil
		}
		logger.L.Error("failed to store message in sqlite; falling back to memory", "error", err)
	}

	s.mu.Lock()
	s.nextID++
	s.entries = append(s.entries, Entry{ID: s.nextID, RunID: runID, Pipeline: pipeline, Message: msg})
	s.mu.Unlock()
	return nil
}

// List returns all messages of a run in chronological order. Rows from SQLite
// and entries that fell back to memory are merged by CreatedAt; ties keep
// database rows first, each side in insertion order.
func (s *Store) List(ctx context.Context, runID string) ([]Entry, error) {
	var out []Entry
	if s.db != nil {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, run_id, pipeline, role, content, created_at FROM messages WHERE run_id = ? ORDER BY id ASC;`, runID)
		if err != nil {
			return nil, fmt.Errorf("transcript: list run %s: %w", runID, err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				e       Entry
				role    string
				created time.Time
			)
			if err := rows.Scan(&e.ID, &e.RunID, &e.Pipeline, &role, &e.Message.Content, &created); err != nil {
				return nil, fmt.Errorf("transcript: scan: %w", err)
			}
			e.Message.Role = history.Role(role)
			e.Message.CreatedAt = created
			out = append(out, e)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	for _, e := range s.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	slices.SortStableFunc(out, func(a, b Entry) int {
		return a.Message.CreatedAt.Compare(b.Message.CreatedAt)
	})
	return out, nil
}

// Close closes the database, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
