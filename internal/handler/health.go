package handler

import "net/http"

// Health handles GET /health, a plain liveness probe with no dependency
// checks of its own.
func (d *Dependencies) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
