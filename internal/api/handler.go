// Package api provides HTTP handlers for the conversation summary and history
// endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/cheongchun/chatcore/internal/store"
	"github.com/cheongchun/chatcore/internal/summary"
)

// maxBodyBytes caps request bodies; transcripts are the largest payload.
const maxBodyBytes = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	repo       store.Repository
	summarizer summary.Summarizer
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, summarizer summary.Summarizer) *Handler {
	return &Handler{
		repo:       repo,
		summarizer: summarizer,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
