package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultListLimit applies when limit is absent or not a positive integer.
	DefaultListLimit = 100
	// MaxListLimit caps any requested limit.
	MaxListLimit = 1000
)

// decodeJSON decodes the request body into v.
// Returns false on error (and writes the error response).
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, invalid("Invalid request body"))
		return false
	}
	return true
}

// writeJSON writes the value as JSON with appropriate headers.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// parseLimit reads the limit query parameter.
func parseLimit(r *http.Request) int {
	limit := DefaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit
}

// validID checks that id is a row id.
func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalid("Invalid id")
	}
	return nil
}

// blank reports whether a required string field is missing.
func blank(s string) bool { return strings.TrimSpace(s) == "" }

// nullIfEmpty maps an absent or empty optional string to nil.
func nullIfEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// nullIfJSONNull maps an absent or literal-null JSON value to nil.
func nullIfJSONNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return nil
	}
	return raw
}
