package handlers

import "net/http"

// HandleHealth reports liveness and the number of live game controllers.
func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"controllers": a.Registry.Len(),
	})
}
