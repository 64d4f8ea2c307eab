package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"apt-detection-app/internal/database"
)

// ThreatsResponse wraps a list of threats.
type ThreatsResponse struct {
	Threats []*database.Threat `json:"threats"`
}

// UpdateThreatStatusRequest is the body of PATCH /api/threats/{id}/status.
type UpdateThreatStatusRequest struct {
	Status string `json:"status"`
}

// ListThreats returns threats, newest first.
// GET /api/threats?severity=&status=&agent_id=&limit=
func (h *Handlers) ListThreats(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := database.Query{OrderBy: "detected_at", Limit: parseLimit(r)}

	if s := params.Get("severity"); s != "" {
		if !database.Severity(s).Valid() {
			writeError(w, invalid("Invalid severity level"))
			return
		}
		q = q.Where("severity", s)
	}
	if s := params.Get("status"); s != "" {
		if !database.ThreatStatus(s).Valid() {
			writeError(w, invalid("Invalid status"))
			return
		}
		q = q.Where("status", s)
	}
	if agentID := params.Get("agent_id"); agentID != "" {
		q = q.Where("agent_id", agentID)
	}

	threats, err := h.db.ListThreats(r.Context(), q)
	if err != nil {
		writeError(w, &StorageError{Err: err})
		return
	}
	if threats == nil {
		threats = []*database.Threat{}
	}
	writeJSON(w, http.StatusOK, ThreatsResponse{Threats: threats})
}

// UpdateThreatStatus changes a threat's status.
// PATCH /api/threats/{id}/status
func (h *Handlers) UpdateThreatStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateThreatStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if blank(req.Status) {
		writeError(w, invalid("Missing required fields"))
		return
	}

	threat, err := h.SetThreatStatus(r.Context(), chi.URLParam(r, "id"), database.ThreatStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ThreatResponse{Success: true, Threat: threat})
}
