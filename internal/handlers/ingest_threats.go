package handlers

import (
	"log/slog"
	"net/http"

	"apt-detection-app/internal/database"
	"apt-detection-app/internal/events"
)

// ReportThreatRequest is the body of POST /api/threats/report.
type ReportThreatRequest struct {
	AgentID       *string `json:"agent_id"`
	ThreatType    string  `json:"threat_type"`
	Severity      string  `json:"severity"`
	Description   string  `json:"description"`
	SourceIP      *string `json:"source_ip"`
	DestinationIP *string `json:"destination_ip"`
	Port          *int    `json:"port"`
	Protocol      *string `json:"protocol"`
}

// ThreatResponse wraps a single threat.
type ThreatResponse struct {
	Success bool             `json:"success"`
	Threat  *database.Threat `json:"threat"`
}

// ReportThreat records a detected threat as active, stamped with the server
// clock. Notifications are fanned out by the store's trigger.
// POST /api/threats/report
func (h *Handlers) ReportThreat(w http.ResponseWriter, r *http.Request) {
	var req ReportThreatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if blank(req.ThreatType) || blank(req.Severity) || blank(req.Description) {
		writeError(w, invalid("Missing required fields"))
		return
	}
	severity := database.Severity(req.Severity)
	if !severity.Valid() {
		writeError(w, invalid("Invalid severity level"))
		return
	}

	threat, err := h.db.CreateThreat(r.Context(), database.NewThreat{
		AgentID:       nullIfEmpty(req.AgentID),
		ThreatType:    req.ThreatType,
		Severity:      severity,
		Description:   req.Description,
		SourceIP:      nullIfEmpty(req.SourceIP),
		DestinationIP: nullIfEmpty(req.DestinationIP),
		Port:          req.Port,
		Protocol:      nullIfEmpty(req.Protocol),
		Status:        database.ThreatActive,
		DetectedAt:    h.now(),
	})
	if err != nil {
		writeError(w, &StorageError{Err: err})
		return
	}

	slog.Info("Threat reported", "threat_id", threat.ID, "threat_type", threat.ThreatType, "severity", threat.Severity)
	h.publish(r.Context(), events.ForThreatReported(threat))
	writeJSON(w, http.StatusCreated, ThreatResponse{Success: true, Threat: threat})
}
