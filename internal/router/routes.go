package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"apt-detection-app/internal/handlers"
)

// setupRoutes configures all HTTP routes.
func (r *Router) setupRoutes() {
	h := r.handlers

	r.mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if r.metrics != nil {
		r.mux.Handle("/metrics", r.metrics)
	}

	r.mux.Route("/api", func(api chi.Router) {
		// Sensor ingestion
		api.Post("/agents/register", h.RegisterAgent)
		api.Post("/agents/heartbeat", h.Heartbeat)
		api.Post("/logs", h.SubmitLog)
		api.Get("/logs", h.ListLogs)
		api.Post("/threats/report", h.ReportThreat)

		// Operator views and actions
		api.Get("/threats", h.ListThreats)
		api.Patch("/threats/{id}/status", h.UpdateThreatStatus)
		api.Get("/agents", h.ListAgents)
		api.Post("/agents", h.CreateAgent)
		api.Post("/agents/{id}/start", h.StartAgentHandler)
		api.Post("/agents/{id}/stop", h.StopAgentHandler)
		api.Delete("/agents/{id}", h.DeleteAgent)
		api.Get("/dashboard/stats", h.GetDashboardStats)
		api.Get("/services/metrics", h.GetServiceMetrics)

		// User-scoped
		api.Group(func(user chi.Router) {
			user.Use(handlers.RequireUser)

			user.Get("/notifications", h.ListNotifications)
			user.Post("/notifications/read-all", h.MarkAllNotificationsReadHandler)
			user.Post("/notifications/{id}/read", h.MarkNotificationReadHandler)
			user.Delete("/notifications/{id}", h.DeleteNotification)
			user.Get("/settings", h.GetSettings)
			user.Put("/settings", h.UpdateSettings)

			if r.sessions != nil {
				user.Handle("/ws", r.sessions)
			}
		})
	})
}
