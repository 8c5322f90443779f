package api

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
	// Hint carries remediation advice, e.g. "restart the session".
	Hint string `json:"hint,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func respondErrorHint(w http.ResponseWriter, status int, message, hint string) {
	respondJSON(w, status, errorResponse{Error: message, Hint: hint})
}
