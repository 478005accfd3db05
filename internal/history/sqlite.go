package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteSchema keeps the history document in a single row.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS history (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    document    TEXT NOT NULL,
    updated_ns  INTEGER NOT NULL
);
`

// DefaultBusyTimeout bounds how long SQLite waits for a competing writer.
const DefaultBusyTimeout = 30 * time.Second

// SQLiteStore keeps the history in an embedded SQLite database. Mutations
// run in BEGIN IMMEDIATE transactions, so writers serialize the same way the
// exclusive file lock does.
type SQLiteStore struct {
	db   *sql.DB
	opts storeOptions
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, busyTimeout time.Duration, opts ...Option) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate",
		path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Read returns the committed history. A missing row or an unreadable
// document reads as empty.
func (s *SQLiteStore) Read(ctx context.Context) (State, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM history WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Empty(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read history: %w", err)
	}
	return s.opts.load([]byte(doc)).Clone(), nil
}

// Mutate applies fn inside a write transaction.
func (s *SQLiteStore) Mutate(ctx context.Context, fn func(*State)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrLock, err)
	}
	defer tx.Rollback()

	var doc string
	err = tx.QueryRowContext(ctx, `SELECT document FROM history WHERE id = 1`).Scan(&doc)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read history: %w", err)
	}

	state := s.opts.load([]byte(doc))
	fn(&state)

	out, err := Encode(state)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history (id, document, updated_ns) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_ns = excluded.updated_ns`,
		string(out), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}
