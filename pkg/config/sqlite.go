package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);`

// SQLiteStore implements Store on a SQLite database so that several
// processes (a browser driver and a popup, say) can share settings.
type SQLiteStore struct {
	watchers

	db   *sql.DB
	path string
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating settings directory: %w", err)
		}
	}

	dsn := path
	if path != ":memory:" {
		// writers from other processes wait instead of failing with
		// SQLITE_BUSY; immediate transactions take the write lock up front
		// so Set never has to upgrade a stale read snapshot
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening settings database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging settings database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating settings schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Get returns the values for keys.
func (s *SQLiteStore) Get(ctx context.Context, keys ...string) (map[string]bool, error) {
	out := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
		out[key] = false
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM settings WHERE key IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value int
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out[key] = value != 0
	}
	return out, rows.Err()
}

// Set upserts a value and notifies watchers.
func (s *SQLiteStore) Set(ctx context.Context, key string, value bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning settings write: %w", err)
	}
	defer tx.Rollback()

	var previous int
	err = tx.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&previous)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("reading previous setting: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO settings (key, value, updated_at) VALUES (?, ?, datetime('now'))
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, boolToInt(value))
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing setting %s: %w", key, err)
	}

	s.emit(Change{Key: key, Value: value, Previous: previous != 0})
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
