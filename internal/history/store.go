// Package history persists run outcomes, dispatch attempts, executor
// sessions, and the last seen run identity in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed history database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at dbPath. Parent
// directories are created as needed. WAL mode and a busy timeout are
// set through the connection string.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	// modernc.org/sqlite does not support _foreign_keys in the
	// connection string; it is enabled with a PRAGMA below.
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	return finishOpen(ctx, db)
}

// OpenMemory opens an in-memory history database for tests. The shared
// cache lets multiple connections see the same data.
func OpenMemory(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}
	return finishOpen(ctx, db)
}

func finishOpen(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// One writer plus one reader is all the scheduler ever needs.
	db.SetMaxOpenConns(2)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
