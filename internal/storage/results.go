package storage

import (
	"database/sql"
	"fmt"

	"github.com/typewars/typewars-server/internal/game"
)

// SaveResults persists a batch of per-player results in one transaction and
// rolls the outcomes up into player profiles. The session must already be
// finished; otherwise the batch is refused with ErrIntegrity.
func (s *Store) SaveResults(sessionID string, results []game.Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer tx.Rollback()

	var mode string
	var finished bool
	err = tx.QueryRow(
		"SELECT mode, finished FROM sessions WHERE session_id = ?",
		sessionID,
	).Scan(&mode, &finished)
	if err != nil {
		return fmt.Errorf("storage: cannot load session for results: %w", err)
	}
	if !finished {
		return fmt.Errorf("session %s not finished: %w", sessionID, ErrIntegrity)
	}
	label, ok := game.ModeLabel(mode)
	if !ok {
		return fmt.Errorf("unknown mode %q: %w", mode, ErrIntegrity)
	}

	for _, r := range results {
		_, err := tx.Exec(
			`INSERT INTO session_results
			   (session_id, player_id, team, score, speed, mistake_ratio,
			    is_winner, correct_words, incorrect_words)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, r.PlayerID, r.TeamName, r.Score, r.Speed,
			r.MistakeRatio, r.IsWinner, r.CorrectWords, r.IncorrectWords,
		)
		if err != nil {
			return fmt.Errorf("storage: cannot insert result for player %d: %w", r.PlayerID, err)
		}
		if err := rollupPlayerStats(tx, label, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: cannot commit results: %w", err)
	}
	return nil
}

// rollupPlayerStats folds one result into the player's aggregates: the
// cumulative score, the running averages and the per-mode bests.
func rollupPlayerStats(tx *sql.Tx, label string, r game.Result) error {
	_, err := tx.Exec(
		fmt.Sprintf(
			`UPDATE players SET
			   score = score + ?,
			   games_played = games_played + 1,
			   best_speed = MAX(best_speed, ?),
			   avg_speed = (avg_speed * games_played + ?) / (games_played + 1),
			   best_%[1]s_score = MAX(best_%[1]s_score, ?),
			   avg_%[1]s_score = (avg_%[1]s_score * %[1]s_played + ?) / (%[1]s_played + 1),
			   %[1]s_played = %[1]s_played + 1
			 WHERE id = ?`,
			label,
		),
		r.Score, r.Speed, r.Speed, r.Score, r.Score, r.PlayerID,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot update stats for player %d: %w", r.PlayerID, err)
	}
	return nil
}

// SessionResults returns the persisted results for a finished session,
// winners first, then by score.
func (s *Store) SessionResults(sessionID string) ([]game.Result, error) {
	rows, err := s.db.Query(
		`SELECT session_id, player_id, team, score, speed, mistake_ratio,
		        is_winner, correct_words, incorrect_words
		 FROM session_results WHERE session_id = ?
		 ORDER BY is_winner DESC, score DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query results: %w", err)
	}
	defer rows.Close()

	var results []game.Result
	for rows.Next() {
		var r game.Result
		err := rows.Scan(
			&r.SessionID, &r.PlayerID, &r.TeamName, &r.Score, &r.Speed,
			&r.MistakeRatio, &r.IsWinner, &r.CorrectWords, &r.IncorrectWords,
		)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return results, nil
}
