// Package storage provides SQLite-based persistence for player profiles,
// session rows and per-game results. Uses the pure-Go modernc.org/sqlite
// driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrIntegrity signals a write that violates a persistence invariant, such
// as saving results for a session that is not finished.
var ErrIntegrity = errors.New("storage: integrity error")

// Store manages the SQLite database connection.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path. It creates the
// parent directories if needed and runs migrations. An empty path opens an
// in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	if dbPath != ":memory:" {
		if dbPath[0] == '~' {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
			}
			dbPath = filepath.Join(home, dbPath[1:])
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("storage: cannot create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS players (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			displayed_name TEXT NOT NULL,
			score INTEGER NOT NULL DEFAULT 0,
			games_played INTEGER NOT NULL DEFAULT 0,
			best_speed REAL NOT NULL DEFAULT 0,
			avg_speed REAL NOT NULL DEFAULT 0,
			best_single_score INTEGER NOT NULL DEFAULT 0,
			best_endless_score INTEGER NOT NULL DEFAULT 0,
			best_ironwall_score INTEGER NOT NULL DEFAULT 0,
			best_tugofwar_score INTEGER NOT NULL DEFAULT 0,
			avg_single_score REAL NOT NULL DEFAULT 0,
			avg_endless_score REAL NOT NULL DEFAULT 0,
			avg_ironwall_score REAL NOT NULL DEFAULT 0,
			avg_tugofwar_score REAL NOT NULL DEFAULT 0,
			single_played INTEGER NOT NULL DEFAULT 0,
			endless_played INTEGER NOT NULL DEFAULT 0,
			ironwall_played INTEGER NOT NULL DEFAULT 0,
			tugofwar_played INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL CHECK (mode IN ('s', 'i', 't', 'e')),
			name TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			private INTEGER NOT NULL DEFAULT 0,
			players_max INTEGER NOT NULL DEFAULT 0,
			players_now INTEGER NOT NULL DEFAULT 0,
			creator_id INTEGER REFERENCES players(id),
			finished INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			started_at DATETIME,
			finished_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_finished ON sessions(finished);

		CREATE TABLE IF NOT EXISTS session_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			player_id INTEGER REFERENCES players(id),
			team TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL,
			speed REAL NOT NULL CHECK (speed >= 0),
			mistake_ratio REAL NOT NULL CHECK (mistake_ratio >= 0),
			is_winner INTEGER NOT NULL,
			correct_words INTEGER NOT NULL,
			incorrect_words INTEGER NOT NULL,
			UNIQUE (session_id, player_id)
		);
		CREATE INDEX IF NOT EXISTS idx_results_player ON session_results(player_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// scanTime parses the datetime representations sqlite hands back: our own
// RFC3339 strings, CURRENT_TIMESTAMP strings, or driver-native time.Time.
func scanTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		for _, layout := range []string{timeLayout, time.RFC3339, "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, val); err == nil {
				return parsed, true
			}
		}
	case []byte:
		return scanTime(string(val))
	}
	return time.Time{}, false
}
