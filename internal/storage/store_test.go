package storage

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/typewars/typewars-server/internal/game"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionLifecycle(t *testing.T) {
	store := testStore(t)

	session, err := store.CreateSession(game.ModeEndless, "room one", "", false, 4, 0)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.ID == "" || session.Mode != game.ModeEndless || session.PlayersMax != 4 {
		t.Fatalf("session = %+v", session)
	}
	if session.StartedAt != nil || session.Finished {
		t.Fatal("fresh session already started or finished")
	}

	if err := store.SetPlayersNow(session.ID, 3); err != nil {
		t.Fatalf("SetPlayersNow: %v", err)
	}

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.MarkStarted(session.ID, started); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}
	// A second start attempt must not move the timestamp.
	if err := store.MarkStarted(session.ID, started.Add(time.Hour)); err != nil {
		t.Fatalf("MarkStarted again: %v", err)
	}

	loaded, err := store.SessionByID(session.ID)
	if err != nil {
		t.Fatalf("SessionByID: %v", err)
	}
	if loaded.PlayersNow != 3 {
		t.Errorf("playersNow = %d, want 3", loaded.PlayersNow)
	}
	if loaded.StartedAt == nil || !loaded.StartedAt.Equal(started) {
		t.Errorf("startedAt = %v, want %v", loaded.StartedAt, started)
	}

	if err := store.MarkFinished(session.ID, started.Add(time.Minute)); err != nil {
		t.Fatalf("MarkFinished: %v", err)
	}
	loaded, _ = store.SessionByID(session.ID)
	if !loaded.Finished || loaded.FinishedAt == nil {
		t.Fatal("session not finished after MarkFinished")
	}

	open, err := store.ListSessions(false)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("open sessions = %d, want 0", len(open))
	}
	done, _ := store.ListSessions(true)
	if len(done) != 1 {
		t.Errorf("finished sessions = %d, want 1", len(done))
	}
}

func TestSessionByIDNotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.SessionByID("no-such-session")
	if !errors.Is(err, game.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSessionPassword(t *testing.T) {
	store := testStore(t)
	session, err := store.CreateSession(game.ModeSingle, "locked", "hunter2", true, 0, 0)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.PasswordHash == "" || session.PasswordHash == "hunter2" {
		t.Fatal("password stored without hashing")
	}
	if !store.CheckPassword(session, "hunter2") {
		t.Error("correct password rejected")
	}
	if store.CheckPassword(session, "wrong") {
		t.Error("wrong password accepted")
	}

	open, _ := store.CreateSession(game.ModeSingle, "open", "", false, 0, 0)
	if !store.CheckPassword(open, "anything") {
		t.Error("passwordless session rejected a join")
	}
}

func TestCreateSuccessor(t *testing.T) {
	store := testStore(t)
	prev, _ := store.CreateSession(game.ModeSingle, "room", "pw", true, 6, 0)

	next, err := store.CreateSuccessor(prev, game.ModeTugOfWar)
	if err != nil {
		t.Fatalf("CreateSuccessor: %v", err)
	}
	if next.ID == prev.ID {
		t.Fatal("successor reuses the session id")
	}
	if next.Mode != game.ModeTugOfWar {
		t.Errorf("mode = %q, want %q", next.Mode, game.ModeTugOfWar)
	}
	if !strings.HasPrefix(next.Name, "room#") {
		t.Errorf("name = %q, want room#<suffix>", next.Name)
	}
	if next.PlayersMax != 6 || !next.Private || next.PasswordHash != prev.PasswordHash {
		t.Errorf("successor = %+v, want copied privacy settings", next)
	}
}

func TestSaveResultsAndRollup(t *testing.T) {
	store := testStore(t)
	player, err := store.CreatePlayer("alice", "pw", "Alice")
	if err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	session, _ := store.CreateSession(game.ModeEndless, "room", "", false, 0, 0)

	rows := []game.Result{{
		SessionID:      session.ID,
		PlayerID:       player.ID,
		Score:          42,
		Speed:          3.5,
		MistakeRatio:   0.25,
		IsWinner:       true,
		CorrectWords:   10,
		IncorrectWords: 2,
	}}

	// Unfinished sessions refuse results.
	if err := store.SaveResults(session.ID, rows); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}

	store.MarkFinished(session.ID, time.Now())
	if err := store.SaveResults(session.ID, rows); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}

	results, err := store.SessionResults(session.ID)
	if err != nil {
		t.Fatalf("SessionResults: %v", err)
	}
	if len(results) != 1 || results[0].Score != 42 || !results[0].IsWinner {
		t.Fatalf("results = %+v", results)
	}

	stats, err := store.PlayerStatsByID(player.ID)
	if err != nil {
		t.Fatalf("PlayerStatsByID: %v", err)
	}
	if stats.GamesPlayed != 1 || stats.Score != 42 {
		t.Errorf("gamesPlayed=%d score=%d, want 1/42", stats.GamesPlayed, stats.Score)
	}
	if stats.BestSpeed != 3.5 || math.Abs(stats.AvgSpeed-3.5) > 1e-9 {
		t.Errorf("best=%f avg=%f, want 3.5/3.5", stats.BestSpeed, stats.AvgSpeed)
	}
	if stats.Played["endless"] != 1 || stats.BestScore["endless"] != 42 {
		t.Errorf("endless stats = %d played, best %d", stats.Played["endless"], stats.BestScore["endless"])
	}
	if stats.Played["single"] != 0 {
		t.Errorf("single played = %d, want 0", stats.Played["single"])
	}

	// A second, slower game drags the average but not the best.
	session2, _ := store.CreateSession(game.ModeEndless, "room2", "", false, 0, 0)
	store.MarkFinished(session2.ID, time.Now())
	rows2 := []game.Result{{
		SessionID: session2.ID,
		PlayerID:  player.ID,
		Score:     10,
		Speed:     1.5,
	}}
	if err := store.SaveResults(session2.ID, rows2); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}
	stats, _ = store.PlayerStatsByID(player.ID)
	if stats.GamesPlayed != 2 || stats.Score != 52 {
		t.Errorf("gamesPlayed=%d score=%d, want 2/52", stats.GamesPlayed, stats.Score)
	}
	if stats.BestSpeed != 3.5 {
		t.Errorf("bestSpeed = %f, want 3.5", stats.BestSpeed)
	}
	if math.Abs(stats.AvgSpeed-2.5) > 1e-9 {
		t.Errorf("avgSpeed = %f, want 2.5", stats.AvgSpeed)
	}
	if stats.BestScore["endless"] != 42 {
		t.Errorf("endless best = %d, want 42", stats.BestScore["endless"])
	}
}

func TestCreatePlayerUniqueUsername(t *testing.T) {
	store := testStore(t)
	if _, err := store.CreatePlayer("alice", "pw", ""); err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	_, err := store.CreatePlayer("alice", "pw2", "")
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}

func TestAnonymousPlayers(t *testing.T) {
	store := testStore(t)
	a, err := store.CreateAnonymousPlayer("guest")
	if err != nil {
		t.Fatalf("CreateAnonymousPlayer: %v", err)
	}
	b, err := store.CreateAnonymousPlayer("guest")
	if err != nil {
		t.Fatalf("second guest: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("anonymous players share an id")
	}
	if a.Username != "" || a.DisplayedName != "guest" {
		t.Errorf("guest = %+v", a)
	}
}

func TestVerifyPlayerPassword(t *testing.T) {
	store := testStore(t)
	created, _ := store.CreatePlayer("alice", "hunter2", "Alice")

	record, err := store.VerifyPlayerPassword("alice", "hunter2")
	if err != nil {
		t.Fatalf("VerifyPlayerPassword: %v", err)
	}
	if record.ID != created.ID {
		t.Errorf("id = %d, want %d", record.ID, created.ID)
	}

	if _, err := store.VerifyPlayerPassword("alice", "wrong"); !errors.Is(err, game.ErrNotFound) {
		t.Errorf("wrong password err = %v, want ErrNotFound", err)
	}
	if _, err := store.VerifyPlayerPassword("nobody", "hunter2"); !errors.Is(err, game.ErrNotFound) {
		t.Errorf("unknown user err = %v, want ErrNotFound", err)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	store := testStore(t)
	slow, _ := store.CreatePlayer("slow", "pw", "")
	fast, _ := store.CreatePlayer("fast", "pw", "")

	session, _ := store.CreateSession(game.ModeSingle, "room", "", false, 0, 0)
	store.MarkFinished(session.ID, time.Now())
	err := store.SaveResults(session.ID, []game.Result{
		{SessionID: session.ID, PlayerID: slow.ID, Score: 5, Speed: 1},
		{SessionID: session.ID, PlayerID: fast.ID, Score: 90, Speed: 9},
	})
	if err != nil {
		t.Fatalf("SaveResults: %v", err)
	}

	players, err := store.ListPlayers("score", 10)
	if err != nil {
		t.Fatalf("ListPlayers: %v", err)
	}
	if len(players) != 2 || players[0].ID != fast.ID {
		t.Fatalf("leaderboard head = %+v", players)
	}

	// Unknown sort keys fall back to score instead of reaching the query.
	players, err = store.ListPlayers("username; DROP TABLE players", 10)
	if err != nil {
		t.Fatalf("ListPlayers with bad key: %v", err)
	}
	if players[0].ID != fast.ID {
		t.Error("fallback ordering wrong")
	}

	players, _ = store.ListPlayers("score", 1)
	if len(players) != 1 {
		t.Errorf("limit ignored, got %d rows", len(players))
	}
}
