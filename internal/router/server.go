package router

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"apt-detection-app/internal/handlers"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
)

// NewServer returns an HTTP server for the dashboard API on port. Websocket
// sessions clear these deadlines on their own connection. Server errors are
// logged through slog.
func NewServer(port string, h *handlers.Handlers, opts ...Option) *http.Server {
	router := NewRouter(h, opts...)
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}
	if ctx := router.baseCtx; ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	return server
}
