// Package store provides a SQLite-backed answer history store. Every
// answered question is persisted with its synthesized answer and extracted
// references so past answers survive server restarts and can be listed from
// the CLI.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/manualiq-go/internal/references"
)

// Answer is a single persisted question/answer pair.
type Answer struct {
	// Collection is the manual collection the question was asked against.
	Collection string
	// Question is the user's original question.
	Question string
	// Answer is the synthesized answer text.
	Answer string
	// References are the table and figure citations extracted for the answer.
	References references.References
	// CreatedAt is when the answer was persisted.
	CreatedAt time.Time
}

// SQLiteStore persists answers in a local SQLite database. Safe for
// concurrent use.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the answer history database.
// It resolves to ~/.manualiq/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".manualiq")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS answers (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    collection   TEXT    NOT NULL,
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    refs         TEXT    NOT NULL,  -- JSON references.References
    created_at   INTEGER NOT NULL   -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_answers_collection_created
    ON answers (collection, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// SaveAnswer persists a single answered question for the given collection.
func (s *SQLiteStore) SaveAnswer(ctx context.Context, collection, question, answer string, refs references.References) error {
	encoded, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("store: encoding references: %w", err)
	}
	const q = `INSERT INTO answers (collection, question, answer, refs, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, collection, question, answer, string(encoded), time.Now().Unix()); err != nil {
		return fmt.Errorf("store: save answer: %w", err)
	}
	return nil
}

// Recent returns the most recent n answers for the collection, ordered
// newest-first.
func (s *SQLiteStore) Recent(ctx context.Context, collection string, n int) ([]Answer, error) {
	const q = `
SELECT collection, question, answer, refs, created_at
FROM   answers
WHERE  collection = ?
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, collection, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var answers []Answer
	for rows.Next() {
		var a Answer
		var refs string
		var ts int64
		if err := rows.Scan(&a.Collection, &a.Question, &a.Answer, &refs, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(refs), &a.References); err != nil {
			return nil, fmt.Errorf("store: decoding references: %w", err)
		}
		a.CreatedAt = time.Unix(ts, 0)
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return answers, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
