package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/typewars/typewars-server/internal/game"
)

type createSessionRequest struct {
	Mode       string `json:"mode"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	Private    bool   `json:"private"`
	PlayersMax int    `json:"playersMax"`
}

// HandleListSessions returns open sessions, or finished ones with
// ?finished=true.
func (a *API) HandleListSessions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	finished := r.URL.Query().Get("finished") == "true"
	sessions, err := a.Store.ListSessions(finished)
	if err != nil {
		a.Log.Error("cannot list sessions", "err", err)
		writeError(w, http.StatusInternalServerError, "cannot list sessions")
		return
	}
	out := make([]map[string]any, 0, len(sessions))
	for _, session := range sessions {
		if session.Private {
			continue
		}
		out = append(out, sessionJSON(session))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateSession creates a session. An access token, when present,
// records the creator; guests may create sessions too.
func (a *API) HandleCreateSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	code, ok := game.ModeCode(req.Mode)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown mode")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "session name is required")
		return
	}
	if req.PlayersMax < 0 {
		writeError(w, http.StatusBadRequest, "playersMax must not be negative")
		return
	}

	var creatorID int64
	if token := bearerToken(r); token != "" {
		id, err := a.Auth.VerifyAccess(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		creatorID = id
	}

	session, err := a.Store.CreateSession(code, req.Name, req.Password, req.Private, req.PlayersMax, creatorID)
	if err != nil {
		a.Log.Error("cannot create session", "name", req.Name, "err", err)
		writeError(w, http.StatusConflict, "cannot create session")
		return
	}
	a.Log.Info("session created", "session", session.ID, "mode", req.Mode)
	writeJSON(w, http.StatusCreated, sessionJSON(session))
}

// HandleGetSession returns one session; finished sessions carry their
// persisted results.
func (a *API) HandleGetSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	session, err := a.Store.SessionByID(ps.ByName("session_id"))
	if errors.Is(err, game.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		a.Log.Error("cannot load session", "err", err)
		writeError(w, http.StatusInternalServerError, "cannot load session")
		return
	}

	out := sessionJSON(session)
	if session.Finished {
		results, err := a.Store.SessionResults(session.ID)
		if err != nil {
			a.Log.Error("cannot load results", "session", session.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "cannot load results")
			return
		}
		out["results"] = resultsJSON(results)
	}
	writeJSON(w, http.StatusOK, out)
}

func sessionJSON(session *game.Session) map[string]any {
	label, _ := game.ModeLabel(session.Mode)
	out := map[string]any{
		"sessionId":  session.ID,
		"mode":       label,
		"name":       session.Name,
		"private":    session.Private,
		"protected":  session.PasswordHash != "",
		"playersMax": session.PlayersMax,
		"playersNow": session.PlayersNow,
		"finished":   session.Finished,
		"createdAt":  session.CreatedAt,
	}
	if session.CreatorID != 0 {
		out["creatorId"] = session.CreatorID
	}
	if session.StartedAt != nil {
		out["startedAt"] = *session.StartedAt
	}
	if session.FinishedAt != nil {
		out["finishedAt"] = *session.FinishedAt
	}
	return out
}

func resultsJSON(results []game.Result) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		row := map[string]any{
			"playerId":       r.PlayerID,
			"score":          r.Score,
			"speed":          r.Speed,
			"mistakeRatio":   r.MistakeRatio,
			"isWinner":       r.IsWinner,
			"correctWords":   r.CorrectWords,
			"incorrectWords": r.IncorrectWords,
		}
		if r.TeamName != "" {
			row["teamName"] = r.TeamName
		}
		out = append(out, row)
	}
	return out
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
