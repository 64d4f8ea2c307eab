package handlers

import (
	"net/http"

	"apt-detection-app/internal/database"
	"apt-detection-app/internal/state"
)

// DashboardThreatWindow is the number of latest threats the dashboard
// counters are computed over.
const DashboardThreatWindow = 10

// StatsResponse wraps the dashboard counters.
type StatsResponse struct {
	Stats state.Stats `json:"stats"`
}

// GetDashboardStats returns the dashboard counters.
// GET /api/dashboard/stats
func (h *Handlers) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	threats, err := h.db.ListThreats(ctx, database.Query{OrderBy: "detected_at", Limit: DashboardThreatWindow})
	if err != nil {
		writeError(w, &StorageError{Err: err})
		return
	}
	agents, err := h.db.ListAgents(ctx, database.Query{OrderBy: "created_at"})
	if err != nil {
		writeError(w, &StorageError{Err: err})
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{Stats: state.DashboardStats(values(threats), values(agents))})
}

func values[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, p := range in {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
