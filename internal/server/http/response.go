package http

import (
	"encoding/json"
	"net/http"
	"time"
)

// envelope is the shape of every JSON response body.
type envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	writeEnvelope(w, envelope{Success: true, Data: data, Timestamp: time.Now().UTC()}, statusCode)
}

func respondError(w http.ResponseWriter, message string, statusCode int) {
	writeEnvelope(w, envelope{Error: message, Timestamp: time.Now().UTC()}, statusCode)
}

func writeEnvelope(w http.ResponseWriter, e envelope, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// the status line is already out; nothing useful left to do on failure
	_ = json.NewEncoder(w).Encode(e)
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
