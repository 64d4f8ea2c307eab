package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"apt-detection-app/internal/database"
)

// AgentsResponse wraps a list of agents.
type AgentsResponse struct {
	Agents []*database.Agent `json:"agents"`
}

// ListAgents returns all agents, newest first.
// GET /api/agents
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	q := database.Query{OrderBy: "created_at"}
	if s := r.URL.Query().Get("status"); s != "" {
		if !database.AgentStatus(s).Valid() {
			writeError(w, invalid("Invalid status"))
			return
		}
		q = q.Where("status", s)
	}

	agents, err := h.db.ListAgents(r.Context(), q)
	if err != nil {
		writeError(w, &StorageError{Err: err})
		return
	}
	if agents == nil {
		agents = []*database.Agent{}
	}
	writeJSON(w, http.StatusOK, AgentsResponse{Agents: agents})
}

// CreateAgent adds an agent by hand.
// POST /api/agents
func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req RegisterAgentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	agent, err := h.AddAgent(r.Context(), req.AgentName, req.IPAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AgentResponse{Success: true, Agent: agent})
}

// StartAgentHandler marks an agent online.
// POST /api/agents/{id}/start
func (h *Handlers) StartAgentHandler(w http.ResponseWriter, r *http.Request) {
	agent, err := h.StartAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AgentResponse{Success: true, Agent: agent})
}

// StopAgentHandler marks an agent offline.
// POST /api/agents/{id}/stop
func (h *Handlers) StopAgentHandler(w http.ResponseWriter, r *http.Request) {
	agent, err := h.StopAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AgentResponse{Success: true, Agent: agent})
}

// DeleteAgent removes an agent.
// DELETE /api/agents/{id}
func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.RemoveAgent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
