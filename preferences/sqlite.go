// Package preferences persists small user settings, such as the last
// selected city, across restarts.
package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrEmptyKey is returned for blank preference keys
var ErrEmptyKey = errors.New("preference key is empty")

// SQLiteStore is a key-value preference store backed by a SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the preference database at path
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences %s: %w", path, err)
	}
	// One writer at a time; sqlite serialises anyway
	db.SetMaxOpenConns(1)

	schema := `CREATE TABLE IF NOT EXISTS preferences (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create preferences schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the stored value for key. ok is false when nothing is stored.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, ErrEmptyKey
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences(key, value, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save preference %q: %w", key, err)
	}
	return nil
}

// Close releases the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
