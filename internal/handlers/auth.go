package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/typewars/typewars-server/internal/game"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// HandleLogin exchanges credentials for a token pair.
func (a *API) HandleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	record, err := a.Store.VerifyPlayerPassword(req.Username, req.Password)
	if errors.Is(err, game.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		a.Log.Error("login failed", "err", err)
		writeError(w, http.StatusInternalServerError, "cannot verify credentials")
		return
	}
	pair, err := a.Auth.IssuePair(record.ID)
	if err != nil {
		a.Log.Error("cannot issue tokens", "player", record.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "cannot issue tokens")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// HandleRefresh exchanges a refresh token for a fresh pair.
func (a *API) HandleRefresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	playerID, err := a.Auth.VerifyRefresh(req.Refresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	pair, err := a.Auth.IssuePair(playerID)
	if err != nil {
		a.Log.Error("cannot issue tokens", "player", playerID, "err", err)
		writeError(w, http.StatusInternalServerError, "cannot issue tokens")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}
