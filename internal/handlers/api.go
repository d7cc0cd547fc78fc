// Package handlers glues the HTTP surface to the game core: the websocket
// play endpoint, the REST API for sessions and players, auth, health and
// metrics.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/typewars/typewars-server/internal/auth"
	"github.com/typewars/typewars-server/internal/game"
	"github.com/typewars/typewars-server/internal/hub"
	"github.com/typewars/typewars-server/internal/storage"
	"github.com/typewars/typewars-server/internal/words"
)

// API carries the shared dependencies of every handler.
type API struct {
	Log      *log.Logger
	Store    *storage.Store
	Hub      *hub.Hub
	Registry *game.Registry
	Auth     *auth.Service
	Words    words.Source

	// ReadTimeout is how long a websocket client may stay silent before
	// the connection is dropped; pings go out every PingRate.
	ReadTimeout time.Duration
	PingRate    time.Duration
}

// Routes builds the full route table.
func (a *API) Routes() *httprouter.Router {
	router := httprouter.New()

	router.GET("/ws/play/:session_id/", a.HandlePlay)
	router.GET("/ws/play/:session_id/:token/", a.HandlePlay)

	router.POST("/api/auth/", a.HandleLogin)
	router.POST("/api/auth/refresh/", a.HandleRefresh)

	router.GET("/api/sessions/", a.HandleListSessions)
	router.POST("/api/sessions/", a.HandleCreateSession)
	router.GET("/api/sessions/:session_id/", a.HandleGetSession)

	router.GET("/api/players/", a.HandleListPlayers)
	router.POST("/api/players/", a.HandleCreatePlayer)
	router.GET("/api/players/:player_id/", a.HandleGetPlayer)

	router.GET("/health", wrap(a.HandleHealth))
	router.Handler("GET", "/metrics", promhttp.Handler())

	return router
}

func wrap(h http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
