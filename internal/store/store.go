// Package store implements the durable settings and credential store: a
// SQLite-backed key-value table holding provider tokens, user settings, the
// task list and the suggestion cache.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Well-known keys. Provider credential keys are derived via TokenKeys.
const (
	KeyTasks                     = "tasks"
	KeySmartSuggestionsCache     = "smart_suggestions_cache"
	KeySmartSuggestionsLastFetch = "smart_suggestions_last_fetch"
	KeyDismissedSuggestions      = "dismissed_suggestions"
	KeyUserSettings              = "userSettings"
)

// TokenKeys returns the credential keys for a provider.
func TokenKeys(provider string) (access, refresh, expiresAt string) {
	return provider + "_access_token", provider + "_refresh_token", provider + "_expires_at"
}

// Store is the SQLite-backed key-value settings store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the settings database under statePath.
func Open(statePath string) (*Store, error) {
	dbPath := filepath.Join(statePath, "settings.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, true, nil
}

// GetString returns the value for key, or def if absent.
func (s *Store) GetString(key, def string) (string, error) {
	value, ok, err := s.Get(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

// Set writes key to value, overwriting any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// SetJSON marshals v and stores it under key.
func (s *Store) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}
	return s.Set(key, string(data))
}

// GetJSON unmarshals the value under key into v. Returns false if the key
// is absent, leaving v untouched.
func (s *Store) GetJSON(key string, v any) (bool, error) {
	value, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(value), v); err != nil {
		return false, fmt.Errorf("failed to parse %q: %w", key, err)
	}
	return true, nil
}
