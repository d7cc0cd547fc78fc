package game

import "time"

// Session is the durable record of one unit of play. It outlives the
// in-memory controller that advances it through the game.
type Session struct {
	ID           string
	Mode         string
	Name         string
	PasswordHash string
	Private      bool
	PlayersMax   int
	PlayersNow   int
	CreatorID    int64
	Finished     bool
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// PlayerRecord is a player's durable profile, distinct from the volatile
// per-session LocalPlayer.
type PlayerRecord struct {
	ID            int64
	Username      string
	DisplayedName string

	Score       int
	GamesPlayed int
	BestSpeed   float64
	AvgSpeed    float64
	CreatedAt   time.Time
}

// Result is one player's persisted outcome for one session.
// (SessionID, PlayerID) is unique.
type Result struct {
	SessionID      string
	PlayerID       int64
	TeamName       string
	Score          int
	Speed          float64
	MistakeRatio   float64
	IsWinner       bool
	CorrectWords   int
	IncorrectWords int
}

// Repository is the narrow persistence interface the game core consults.
// All controller I/O funnels through it.
type Repository interface {
	// SessionByID loads a session record, or ErrNotFound.
	SessionByID(id string) (*Session, error)

	// SetPlayersNow records the current participant count on the session.
	SetPlayersNow(sessionID string, n int) error

	// MarkStarted stamps started_at; only the first call has any effect.
	MarkStarted(sessionID string, at time.Time) error

	// MarkFinished stamps finished_at and sets the finished flag.
	MarkFinished(sessionID string, at time.Time) error

	// SaveResults persists a batch of per-player results. It must refuse
	// the batch when the session is not finished yet.
	SaveResults(sessionID string, results []Result) error

	// CreateSuccessor creates a follow-up session copying name, privacy,
	// player cap and creator from prev, with the given new mode code.
	CreateSuccessor(prev *Session, newMode string) (*Session, error)

	// CheckPassword verifies a plaintext password against the session's
	// stored hash.
	CheckPassword(session *Session, password string) bool
}
