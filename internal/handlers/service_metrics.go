package handlers

import (
	"log/slog"
	"net/http"

	"apt-detection-app/internal/metrics"
)

// ServiceMetricsResponse wraps service metrics with the known service list.
type ServiceMetricsResponse struct {
	Services      map[string]*metrics.ServiceMetrics `json:"services"`
	KnownServices []string                           `json:"known_services"`
}

// GetServiceMetrics returns the snapshots services publish to Redis.
// GET /api/services/metrics?service=
func (h *Handlers) GetServiceMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metricsReader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Service metrics are not enabled"})
		return
	}
	ctx := r.Context()

	if name := r.URL.Query().Get("service"); name != "" {
		m, err := h.metricsReader.GetServiceMetrics(ctx, name)
		if err != nil {
			slog.Warn("Failed to get service metrics", "service", name, "error", err)
			m = metrics.Offline(name)
		}
		writeJSON(w, http.StatusOK, m)
		return
	}

	all, err := h.metricsReader.GetAllServiceMetrics(ctx)
	if err != nil {
		slog.Error("Failed to get all service metrics", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve service metrics"})
		return
	}
	for _, name := range h.knownServices {
		if _, ok := all[name]; !ok {
			all[name] = metrics.Offline(name)
		}
	}

	known := h.knownServices
	if known == nil {
		known = []string{}
	}
	writeJSON(w, http.StatusOK, ServiceMetricsResponse{Services: all, KnownServices: known})
}
