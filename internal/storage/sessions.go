package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/typewars/typewars-server/internal/game"
)

// CreateSession inserts a new session row with a fresh identifier. The
// password, when non-empty, is stored as a bcrypt hash.
func (s *Store) CreateSession(mode, name, password string, private bool, playersMax int, creatorID int64) (*game.Session, error) {
	passwordHash := ""
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot hash password: %w", err)
		}
		passwordHash = string(hash)
	}

	sessionID := uuid.NewString()
	var creator any
	if creatorID != 0 {
		creator = creatorID
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, mode, name, password_hash, private, players_max, creator_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, mode, name, passwordHash, private, playersMax, creator,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot create session: %w", err)
	}
	return s.SessionByID(sessionID)
}

// SessionByID loads a session record, or game.ErrNotFound.
func (s *Store) SessionByID(id string) (*game.Session, error) {
	row := s.db.QueryRow(
		`SELECT session_id, mode, name, password_hash, private, players_max,
		        players_now, creator_id, finished, created_at, started_at, finished_at
		 FROM sessions WHERE session_id = ?`,
		id,
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, game.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot load session: %w", err)
	}
	return session, nil
}

// ListSessions returns sessions filtered by their finished flag, newest
// first.
func (s *Store) ListSessions(finished bool) ([]*game.Session, error) {
	rows, err := s.db.Query(
		`SELECT session_id, mode, name, password_hash, private, players_max,
		        players_now, creator_id, finished, created_at, started_at, finished_at
		 FROM sessions WHERE finished = ? ORDER BY created_at DESC`,
		finished,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*game.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return sessions, nil
}

// SetPlayersNow records the current participant count on the session.
func (s *Store) SetPlayersNow(sessionID string, n int) error {
	_, err := s.db.Exec(
		"UPDATE sessions SET players_now = ? WHERE session_id = ?",
		n, sessionID,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot update players_now: %w", err)
	}
	return nil
}

// MarkStarted stamps started_at; only the first call has any effect.
func (s *Store) MarkStarted(sessionID string, at time.Time) error {
	_, err := s.db.Exec(
		"UPDATE sessions SET started_at = ? WHERE session_id = ? AND started_at IS NULL",
		formatTime(at), sessionID,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot mark session started: %w", err)
	}
	return nil
}

// MarkFinished stamps finished_at and sets the finished flag.
func (s *Store) MarkFinished(sessionID string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET finished = 1, finished_at = ?
		 WHERE session_id = ? AND finished_at IS NULL`,
		formatTime(at), sessionID,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot mark session finished: %w", err)
	}
	return nil
}

// CreateSuccessor creates the follow-up session for a finished game,
// copying privacy, player cap and creator from the previous session and
// taking the voted mode. The name gets a short suffix to keep it unique.
func (s *Store) CreateSuccessor(prev *game.Session, newMode string) (*game.Session, error) {
	sessionID := uuid.NewString()
	name := prev.Name + "#" + sessionID[:8]
	var creator any
	if prev.CreatorID != 0 {
		creator = prev.CreatorID
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, mode, name, password_hash, private, players_max, creator_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, newMode, name, prev.PasswordHash, prev.Private, prev.PlayersMax, creator,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot create successor session: %w", err)
	}
	return s.SessionByID(sessionID)
}

// CheckPassword verifies a plaintext password against the session's stored
// hash. Sessions without a password accept anything.
func (s *Store) CheckPassword(session *game.Session, password string) bool {
	if session.PasswordHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(session.PasswordHash), []byte(password)) == nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*game.Session, error) {
	var (
		session    game.Session
		creator    sql.NullInt64
		createdAt  any
		startedAt  any
		finishedAt any
	)
	err := row.Scan(
		&session.ID, &session.Mode, &session.Name, &session.PasswordHash,
		&session.Private, &session.PlayersMax, &session.PlayersNow,
		&creator, &session.Finished, &createdAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	if creator.Valid {
		session.CreatorID = creator.Int64
	}
	if t, ok := scanTime(createdAt); ok {
		session.CreatedAt = t
	}
	if t, ok := scanTime(startedAt); ok {
		session.StartedAt = &t
	}
	if t, ok := scanTime(finishedAt); ok {
		session.FinishedAt = &t
	}
	return &session, nil
}
