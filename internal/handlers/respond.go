package handlers

import (
	"encoding/json"
	"net/http"

	"rag-server/internal/models"
)

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError writes a machine-readable error body
func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, models.NewErrorResponse(errType, message))
}
