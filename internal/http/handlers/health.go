package handlers

import "net/http"

// HandleHealth handles GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, envelope{"ok": true})
}

// HandleAPINotFound answers unknown /api routes with the error envelope
func HandleAPINotFound(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, http.StatusNotFound, "API route not found")
}
