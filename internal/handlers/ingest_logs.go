package handlers

import (
	"encoding/json"
	"net/http"

	"apt-detection-app/internal/database"
	"apt-detection-app/internal/events"
)

// SubmitLogRequest is the body of POST /api/logs.
type SubmitLogRequest struct {
	AgentID  *string         `json:"agent_id"`
	LogLevel string          `json:"log_level"`
	Message  string          `json:"message"`
	Metadata json.RawMessage `json:"metadata"`
}

// LogResponse wraps a single log entry.
type LogResponse struct {
	Success bool                `json:"success"`
	Log     *database.SystemLog `json:"log"`
}

// LogsResponse wraps a list of log entries.
type LogsResponse struct {
	Logs []*database.SystemLog `json:"logs"`
}

// SubmitLog appends a system log entry.
// POST /api/logs
func (h *Handlers) SubmitLog(w http.ResponseWriter, r *http.Request) {
	var req SubmitLogRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if blank(req.LogLevel) || blank(req.Message) {
		writeError(w, invalid("Missing required fields"))
		return
	}
	level := database.LogLevel(req.LogLevel)
	if !level.Valid() {
		writeError(w, invalid("Invalid log level"))
		return
	}

	entry, err := h.db.CreateLog(r.Context(), database.NewLog{
		AgentID:  nullIfEmpty(req.AgentID),
		LogLevel: level,
		Message:  req.Message,
		Metadata: nullIfJSONNull(req.Metadata),
	})
	if err != nil {
		writeError(w, &StorageError{Err: err})
		return
	}

	h.publish(r.Context(), events.ForLog(entry))
	writeJSON(w, http.StatusCreated, LogResponse{Success: true, Log: entry})
}

// ListLogs returns log entries, newest first, optionally filtered by agent_id
// and log_level.
// GET /api/logs?agent_id=&log_level=&limit=
func (h *Handlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := database.Query{OrderBy: "created_at", Limit: parseLimit(r)}
	if agentID := r.URL.Query().Get("agent_id"); agentID != "" {
		q = q.Where("agent_id", agentID)
	}
	if level := r.URL.Query().Get("log_level"); level != "" {
		q = q.Where("log_level", level)
	}

	logs, err := h.db.ListLogs(r.Context(), q)
	if err != nil {
		writeError(w, &StorageError{Err: err})
		return
	}
	if logs == nil {
		logs = []*database.SystemLog{}
	}
	writeJSON(w, http.StatusOK, LogsResponse{Logs: logs})
}
