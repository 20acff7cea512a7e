// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists loom's durable state.
//
// Only two things survive a restart: the serialized thread collection
// and the current thread id. Both live as rows in a small SQLite
// key-value table alongside a schema version, so the layout can be
// migrated forward later. Everything else (pending attachments for the
// next send, timers, partial-response buffers) is session state and is
// deliberately not persisted.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/loom-tui/internal/conversation"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSchemaTooNew is returned when the state file was written by a
	// newer loom than this one.
	ErrSchemaTooNew = errors.New("state schema is newer than this version")
)

// =============================================================================
// CONSTANTS
// =============================================================================

// SchemaVersion is the current state layout version.
const SchemaVersion = 1

const (
	keySchemaVersion   = "schema_version"
	keyThreads         = "threads"
	keyCurrentThreadID = "current_thread_id"
)

// =============================================================================
// STORE
// =============================================================================

// Store reads and writes the persisted state database.
type Store struct {
	db   *sql.DB
	path string
}

// State is the durable snapshot.
type State struct {
	Threads         []conversation.Thread
	CurrentThreadID string
}

// DefaultPath returns the default state database location,
// ~/.loom/state.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".loom", "state.db"), nil
}

// Open opens (creating if needed) the state database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// init creates the state table and checks the schema version.
func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create state table: %w", err)
	}

	raw, err := s.get(keySchemaVersion)
	if err != nil {
		return err
	}
	if raw == "" {
		return s.set(keySchemaVersion, strconv.Itoa(SchemaVersion))
	}

	version, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid schema version %q", raw)
	}
	if version > SchemaVersion {
		return fmt.Errorf("%w: found %d, supported %d", ErrSchemaTooNew, version, SchemaVersion)
	}
	// version <= SchemaVersion: forward migrations slot in here.
	return nil
}

// =============================================================================
// SAVE / LOAD
// =============================================================================

// Save writes the full thread collection and current thread id in one
// transaction.
func (s *Store) Save(state State) error {
	data, err := json.Marshal(state.Threads)
	if err != nil {
		return fmt.Errorf("failed to serialize threads: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, value := range map[string]string{
		keyThreads:         string(data),
		keyCurrentThreadID: state.CurrentThreadID,
		keySchemaVersion:   strconv.Itoa(SchemaVersion),
	} {
		if _, err := tx.Exec(
			`INSERT INTO state (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Load reads the persisted state. A database with no saved threads
// yields a zero State and no error; callers fall back to a fresh store.
func (s *Store) Load() (State, error) {
	raw, err := s.get(keyThreads)
	if err != nil {
		return State{}, err
	}
	if raw == "" {
		return State{}, nil
	}

	var threads []conversation.Thread
	if err := json.Unmarshal([]byte(raw), &threads); err != nil {
		return State{}, fmt.Errorf("failed to parse threads: %w", err)
	}

	current, err := s.get(keyCurrentThreadID)
	if err != nil {
		return State{}, err
	}

	return State{Threads: threads, CurrentThreadID: current}, nil
}

// =============================================================================
// KEY-VALUE HELPERS
// =============================================================================

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
