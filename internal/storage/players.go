package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/typewars/typewars-server/internal/game"
)

// PlayerStats is the full profile row, including per-mode aggregates that
// the slim game.PlayerRecord does not carry.
type PlayerStats struct {
	game.PlayerRecord

	BestScore map[string]int
	AvgScore  map[string]float64
	Played    map[string]int
}

// CreatePlayer registers a named account with a bcrypt-hashed password.
func (s *Store) CreatePlayer(username, password, displayedName string) (*game.PlayerRecord, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot hash password: %w", err)
	}
	if displayedName == "" {
		displayedName = username
	}
	res, err := s.db.Exec(
		"INSERT INTO players (username, password_hash, displayed_name) VALUES (?, ?, ?)",
		username, string(hash), displayedName,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("username %q taken: %w", username, ErrIntegrity)
		}
		return nil, fmt.Errorf("storage: cannot create player: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("storage: cannot read player id: %w", err)
	}
	return s.PlayerByID(id)
}

// CreateAnonymousPlayer registers a guest profile: no username, no
// password, just a displayed name.
func (s *Store) CreateAnonymousPlayer(displayedName string) (*game.PlayerRecord, error) {
	res, err := s.db.Exec(
		"INSERT INTO players (username, password_hash, displayed_name) VALUES (NULL, '', ?)",
		displayedName,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot create anonymous player: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("storage: cannot read player id: %w", err)
	}
	return s.PlayerByID(id)
}

// PlayerByID loads a player's profile, or game.ErrNotFound.
func (s *Store) PlayerByID(id int64) (*game.PlayerRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, username, displayed_name, score, games_played,
		        best_speed, avg_speed, created_at
		 FROM players WHERE id = ?`,
		id,
	)
	record, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %d: %w", id, game.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot load player: %w", err)
	}
	return record, nil
}

// PlayerByUsername loads a named account, or game.ErrNotFound.
func (s *Store) PlayerByUsername(username string) (*game.PlayerRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, username, displayed_name, score, games_played,
		        best_speed, avg_speed, created_at
		 FROM players WHERE username = ?`,
		username,
	)
	record, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %q: %w", username, game.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot load player: %w", err)
	}
	return record, nil
}

// VerifyPlayerPassword checks credentials for a named account and returns
// the matching profile. Wrong username and wrong password are not
// distinguished.
func (s *Store) VerifyPlayerPassword(username, password string) (*game.PlayerRecord, error) {
	var hash string
	var id int64
	err := s.db.QueryRow(
		"SELECT id, password_hash FROM players WHERE username = ?",
		username,
	).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot load credentials: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, game.ErrNotFound
	}
	return s.PlayerByID(id)
}

// Leaderboard sort keys accepted by ListPlayers. The whitelist keeps user
// input out of the ORDER BY clause.
var leaderboardColumns = map[string]string{
	"score":        "score",
	"speed":        "best_speed",
	"avg_speed":    "avg_speed",
	"games_played": "games_played",
}

// ListPlayers returns up to limit player profiles ordered by the given
// leaderboard column, best first. Unknown columns fall back to score.
func (s *Store) ListPlayers(orderBy string, limit int) ([]*game.PlayerRecord, error) {
	column, ok := leaderboardColumns[orderBy]
	if !ok {
		column = "score"
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, username, displayed_name, score, games_played,
		        best_speed, avg_speed, created_at
		 FROM players ORDER BY `+column+` DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query players: %w", err)
	}
	defer rows.Close()

	var players []*game.PlayerRecord
	for rows.Next() {
		record, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan player: %w", err)
		}
		players = append(players, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return players, nil
}

// PlayerStatsByID loads the full profile including per-mode aggregates.
func (s *Store) PlayerStatsByID(id int64) (*PlayerStats, error) {
	record, err := s.PlayerByID(id)
	if err != nil {
		return nil, err
	}
	stats := &PlayerStats{
		PlayerRecord: *record,
		BestScore:    make(map[string]int),
		AvgScore:     make(map[string]float64),
		Played:       make(map[string]int),
	}
	for _, label := range game.ModeLabels {
		var best, played int
		var avg float64
		err := s.db.QueryRow(
			fmt.Sprintf(
				"SELECT best_%[1]s_score, avg_%[1]s_score, %[1]s_played FROM players WHERE id = ?",
				label,
			),
			id,
		).Scan(&best, &avg, &played)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot load %s stats: %w", label, err)
		}
		stats.BestScore[label] = best
		stats.AvgScore[label] = avg
		stats.Played[label] = played
	}
	return stats, nil
}

func scanPlayer(row rowScanner) (*game.PlayerRecord, error) {
	var (
		record    game.PlayerRecord
		username  sql.NullString
		createdAt any
	)
	err := row.Scan(
		&record.ID, &username, &record.DisplayedName, &record.Score,
		&record.GamesPlayed, &record.BestSpeed, &record.AvgSpeed, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if username.Valid {
		record.Username = username.String
	}
	if t, ok := scanTime(createdAt); ok {
		record.CreatedAt = t
	}
	return &record, nil
}
