package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/typewars/typewars-server/internal/game"
	"github.com/typewars/typewars-server/internal/storage"
)

type createPlayerRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	DisplayedName string `json:"displayedName"`
}

// HandleListPlayers returns the leaderboard. ?orderby picks the column
// (score, speed, avg_speed, games_played), ?limit caps the page.
func (a *API) HandleListPlayers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	players, err := a.Store.ListPlayers(r.URL.Query().Get("orderby"), limit)
	if err != nil {
		a.Log.Error("cannot list players", "err", err)
		writeError(w, http.StatusInternalServerError, "cannot list players")
		return
	}
	out := make([]map[string]any, 0, len(players))
	for _, record := range players {
		out = append(out, playerJSON(record))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreatePlayer registers a named account and hands out its first
// token pair.
func (a *API) HandleCreatePlayer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	record, err := a.Store.CreatePlayer(req.Username, req.Password, req.DisplayedName)
	if errors.Is(err, storage.ErrIntegrity) {
		writeError(w, http.StatusConflict, "username is taken")
		return
	}
	if err != nil {
		a.Log.Error("cannot create player", "username", req.Username, "err", err)
		writeError(w, http.StatusInternalServerError, "cannot create player")
		return
	}

	pair, err := a.Auth.IssuePair(record.ID)
	if err != nil {
		a.Log.Error("cannot issue tokens", "player", record.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "cannot issue tokens")
		return
	}
	out := playerJSON(record)
	out["tokens"] = pair
	writeJSON(w, http.StatusCreated, out)
}

// HandleGetPlayer returns one player's profile with per-mode stats.
func (a *API) HandleGetPlayer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := strconv.ParseInt(ps.ByName("player_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	stats, err := a.Store.PlayerStatsByID(id)
	if errors.Is(err, game.ErrNotFound) {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	if err != nil {
		a.Log.Error("cannot load player", "player", id, "err", err)
		writeError(w, http.StatusInternalServerError, "cannot load player")
		return
	}

	out := playerJSON(&stats.PlayerRecord)
	modes := make(map[string]any, len(game.ModeLabels))
	for _, label := range game.ModeLabels {
		modes[label] = map[string]any{
			"bestScore":   stats.BestScore[label],
			"avgScore":    stats.AvgScore[label],
			"gamesPlayed": stats.Played[label],
		}
	}
	out["modes"] = modes
	writeJSON(w, http.StatusOK, out)
}

func playerJSON(record *game.PlayerRecord) map[string]any {
	out := map[string]any{
		"id":            record.ID,
		"displayedName": record.DisplayedName,
		"score":         record.Score,
		"gamesPlayed":   record.GamesPlayed,
		"bestSpeed":     record.BestSpeed,
		"avgSpeed":      record.AvgSpeed,
		"createdAt":     record.CreatedAt,
	}
	if record.Username != "" {
		out["username"] = record.Username
	}
	return out
}
