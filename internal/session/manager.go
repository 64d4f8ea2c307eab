package session

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"apt-detection-app/internal/handlers"
	"apt-detection-app/internal/viewsync"
)

// Metrics tracks open sessions.
type Metrics interface {
	SessionOpened()
	SessionClosed()
}

type noopMetrics struct{}

func (noopMetrics) SessionOpened() {}
func (noopMetrics) SessionClosed() {}

// Manager accepts websocket connections and runs one Session per connection.
type Manager struct {
	loader  viewsync.Loader
	feed    viewsync.Subscriber
	actions handlers.Actions
	metrics Metrics
	initial viewsync.View
	accept  *websocket.AcceptOptions
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics sets the session metrics.
func WithMetrics(m Metrics) Option {
	return func(mgr *Manager) {
		if m != nil {
			mgr.metrics = m
		}
	}
}

// WithInitialView sets the view activated when a session starts.
func WithInitialView(v viewsync.View) Option {
	return func(mgr *Manager) { mgr.initial = v }
}

// WithAllowedOrigins restricts the origins allowed to open a session. Entries
// may be full origins or host patterns; "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(mgr *Manager) {
		for _, o := range origins {
			o = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(o), "https://"), "http://")
			if o != "" {
				mgr.accept.OriginPatterns = append(mgr.accept.OriginPatterns, o)
			}
		}
	}
}

// NewManager creates a session manager.
func NewManager(loader viewsync.Loader, sub viewsync.Subscriber, actions handlers.Actions, opts ...Option) *Manager {
	m := &Manager{
		loader:  loader,
		feed:    sub,
		actions: actions,
		metrics: noopMetrics{},
		initial: viewsync.ViewDashboard,
		accept:  &websocket.AcceptOptions{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ServeHTTP upgrades the request and serves the session until it ends.
// GET /api/ws
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := handlers.UserIDFromContext(r.Context())
	if !ok {
		id, err := handlers.ResolveUserID(r)
		if errors.Is(err, handlers.ErrMissingUser) {
			http.Error(w, handlers.MissingUserMessage, http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		userID = id
	}

	// The server's read and write timeouts must not apply to a long-lived session.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, m.accept)
	if err != nil {
		slog.Warn("Failed to accept websocket", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()

	s := newSession(conn, userID, m.loader, m.feed, m.actions)
	m.metrics.SessionOpened()
	defer m.metrics.SessionClosed()
	slog.Info("Session opened", "session_id", s.id, "user_id", userID)

	err = s.Run(r.Context(), m.initial)
	if closedNormally(err) {
		slog.Info("Session closed", "session_id", s.id)
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	slog.Warn("Session ended", "session_id", s.id, "error", err)
	conn.Close(websocket.StatusInternalError, "session ended")
}
