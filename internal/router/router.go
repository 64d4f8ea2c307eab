// Package router provides HTTP routing configuration for the dashboard API.
// It sets up routes and applies middleware like CORS and request metrics.
package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"apt-detection-app/internal/handlers"
)

// Router wraps the chi mux and provides route configuration.
type Router struct {
	mux      *chi.Mux
	handlers *handlers.Handlers

	observer       RequestObserver
	metrics        http.Handler
	sessions       http.Handler
	allowedOrigins []string
	baseCtx        context.Context
}

// Option configures a Router.
type Option func(*Router)

// WithRequestObserver records every API request.
func WithRequestObserver(o RequestObserver) Option {
	return func(r *Router) { r.observer = o }
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(r *Router) { r.metrics = h }
}

// WithSessions serves the websocket session endpoint at /api/ws.
func WithSessions(h http.Handler) Option {
	return func(r *Router) { r.sessions = h }
}

// WithAllowedOrigins restricts CORS to origins. The default allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(r *Router) {
		if len(origins) > 0 {
			r.allowedOrigins = origins
		}
	}
}

// WithBaseContext makes ctx the parent of every request context served by
// NewServer, so cancelling it ends long-lived sessions.
func WithBaseContext(ctx context.Context) Option {
	return func(r *Router) { r.baseCtx = ctx }
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *handlers.Handlers, opts ...Option) *Router {
	r := &Router{
		mux:            chi.NewRouter(),
		handlers:       h,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.RealIP)
	r.mux.Use(middleware.Logger)
	r.mux.Use(middleware.Recoverer)
	r.mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handlers.UserIDHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.mux.Use(metricsMiddleware(r.observer))

	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}
