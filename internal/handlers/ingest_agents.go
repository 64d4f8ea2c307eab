package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"apt-detection-app/internal/database"
	"apt-detection-app/internal/events"
)

// RegisterAgentRequest is the body of POST /api/agents/register.
type RegisterAgentRequest struct {
	AgentName string `json:"agent_name"`
	IPAddress string `json:"ip_address"`
}

// HeartbeatRequest is the body of POST /api/agents/heartbeat.
type HeartbeatRequest struct {
	AgentID     string   `json:"agent_id"`
	CPUUsage    *float64 `json:"cpu_usage"`
	MemoryUsage *float64 `json:"memory_usage"`
	DiskUsage   *float64 `json:"disk_usage"`
}

// AgentResponse wraps a single agent.
type AgentResponse struct {
	Success bool            `json:"success"`
	Agent   *database.Agent `json:"agent"`
}

// SuccessResponse is the body of writes that return no record.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// RegisterAgent inserts a new agent as online. A second registration from the
// same address is rejected by the store's unique index.
// POST /api/agents/register
func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req RegisterAgentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if blank(req.AgentName) || blank(req.IPAddress) {
		writeError(w, invalid("Missing required fields"))
		return
	}

	now := h.now()
	agent, err := h.db.CreateAgent(r.Context(), database.NewAgent{
		AgentName: req.AgentName,
		IPAddress: req.IPAddress,
		Status:    database.AgentOnline,
		LastSeen:  &now,
	})
	if err != nil {
		writeError(w, classify(err, "Agent", req.IPAddress, "Agent already registered"))
		return
	}

	slog.Info("Agent registered", "agent_id", agent.ID, "agent_name", agent.AgentName, "ip_address", agent.IPAddress)
	h.publish(r.Context(), events.ForAgentRegistered(agent))
	writeJSON(w, http.StatusCreated, AgentResponse{Success: true, Agent: agent})
}

// Heartbeat marks an agent online, stamps last_seen with the server clock and
// stores the reported metrics. A heartbeat for an unknown agent changes
// nothing and still succeeds.
// POST /api/agents/heartbeat
func (h *Handlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if blank(req.AgentID) {
		writeError(w, invalid("Missing agent_id"))
		return
	}

	hb := database.Heartbeat{
		CPUUsage:    req.CPUUsage,
		MemoryUsage: req.MemoryUsage,
		DiskUsage:   req.DiskUsage,
	}
	seenAt := h.now()
	err := h.db.UpdateAgentHeartbeat(r.Context(), req.AgentID, hb, seenAt)
	switch {
	case errors.Is(err, database.ErrNotFound):
		slog.Warn("Heartbeat for unknown agent", "agent_id", req.AgentID)
		h.metrics.IncrementCustom("heartbeat_unknown_agent")
	case err != nil:
		writeError(w, &StorageError{Err: err})
		return
	default:
		h.publish(r.Context(), events.ForHeartbeat(req.AgentID, hb, seenAt))
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
