// Package router provides tests for HTTP routing configuration.
package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"apt-detection-app/internal/database"
	"apt-detection-app/internal/handlers"
)

type observation struct {
	method string
	route  string
	code   int
}

type fakeObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (f *fakeObserver) ObserveRequest(method, route string, code int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, observation{method, route, code})
}

func newTestHandlers(t *testing.T) (*handlers.Handlers, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	db := database.NewWithConn(conn)
	t.Cleanup(func() { db.Close() })
	return handlers.NewHandlers(db, nil), mock
}

func serve(h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// TestNewRouter tests the NewRouter constructor.
func TestNewRouter(t *testing.T) {
	h, _ := newTestHandlers(t)

	router := NewRouter(h)
	if router == nil {
		t.Fatal("NewRouter() returned nil")
	}
	if router.mux == nil {
		t.Error("NewRouter() mux is nil")
	}
	if router.handlers != h {
		t.Error("NewRouter() handlers mismatch")
	}
}

// TestRouter_HealthCheck tests the health check endpoint.
func TestRouter_HealthCheck(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serve(NewRouter(h).Handler(), http.MethodGet, "/health", "", nil)

	if w.Code != http.StatusOK {
		t.Errorf("Health check status = %v, want %v", w.Code, http.StatusOK)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Health check body = %v, want OK", w.Body.String())
	}
}

// TestRouter_CORS tests that preflight requests are answered.
func TestRouter_CORS(t *testing.T) {
	h, _ := newTestHandlers(t)

	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantOrigin string
	}{
		{"any origin", nil, "http://dashboard.local", "*"},
		{"allowed origin", []string{"http://dashboard.local"}, "http://dashboard.local", "http://dashboard.local"},
		{"disallowed origin", []string{"http://dashboard.local"}, "http://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewRouter(h, WithAllowedOrigins(tt.origins)).Handler()
			w := serve(handler, http.MethodOptions, "/api/threats", "", map[string]string{
				"Origin":                        tt.origin,
				"Access-Control-Request-Method": http.MethodPatch,
			})
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

// TestRouter_Routes verifies routes are registered by checking they don't return 404 or 405.
func TestRouter_Routes(t *testing.T) {
	h, _ := newTestHandlers(t)
	handler := NewRouter(h).Handler()

	user := map[string]string{handlers.UserIDHeader: "11111111-1111-1111-1111-111111111111"}
	routes := []struct {
		method string
		path   string
		body   string
		header map[string]string
		want   int
	}{
		{http.MethodPost, "/api/agents/register", `{}`, nil, http.StatusBadRequest},
		{http.MethodPost, "/api/agents/heartbeat", `{}`, nil, http.StatusBadRequest},
		{http.MethodPost, "/api/logs", `{"log_level":"debug","message":"x"}`, nil, http.StatusBadRequest},
		{http.MethodPost, "/api/threats/report", `{}`, nil, http.StatusBadRequest},
		{http.MethodGet, "/api/threats?severity=extreme", "", nil, http.StatusBadRequest},
		{http.MethodPatch, "/api/threats/abc/status", `{"status":"resolved"}`, nil, http.StatusBadRequest},
		{http.MethodPost, "/api/agents", `{}`, nil, http.StatusBadRequest},
		{http.MethodPost, "/api/agents/abc/start", "", nil, http.StatusBadRequest},
		{http.MethodPost, "/api/agents/abc/stop", "", nil, http.StatusBadRequest},
		{http.MethodDelete, "/api/agents/abc", "", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/agents?status=sleeping", "", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/services/metrics", "", nil, http.StatusServiceUnavailable},
		{http.MethodGet, "/api/notifications", "", nil, http.StatusUnauthorized},
		{http.MethodPost, "/api/notifications/abc/read", "", user, http.StatusBadRequest},
		{http.MethodDelete, "/api/notifications/abc", "", user, http.StatusBadRequest},
		{http.MethodPut, "/api/settings", `{"threat_severity_filter":["urgent"]}`, user, http.StatusBadRequest},
		{http.MethodGet, "/api/settings", "", map[string]string{handlers.UserIDHeader: "bob"}, http.StatusBadRequest},
	}

	for _, tt := range routes {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(handler, tt.method, tt.path, tt.body, tt.header)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	w := serve(handler, http.MethodGet, "/api/does-not-exist", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", w.Code)
	}
	w = serve(handler, http.MethodPut, "/api/agents/register", "", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method status = %d, want 405", w.Code)
	}
}

// TestRouter_Metrics tests request observation and the /metrics endpoint.
func TestRouter_Metrics(t *testing.T) {
	h, _ := newTestHandlers(t)
	observer := &fakeObserver{}
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("# metrics"))
	})
	handler := NewRouter(h, WithRequestObserver(observer), WithMetricsHandler(metricsHandler)).Handler()

	serve(handler, http.MethodPatch, "/api/threats/abc/status", `{"status":"resolved"}`, nil)
	serve(handler, http.MethodGet, "/health", "", nil)
	w := serve(handler, http.MethodGet, "/metrics", "", nil)
	if w.Body.String() != "# metrics" {
		t.Errorf("/metrics body = %q", w.Body.String())
	}

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if len(observer.obs) != 1 {
		t.Fatalf("observations = %+v, want only the API request", observer.obs)
	}
	got := observer.obs[0]
	want := observation{http.MethodPatch, "/api/threats/{id}/status", http.StatusBadRequest}
	if got != want {
		t.Errorf("observation = %+v, want %+v", got, want)
	}
}

// TestRouter_SessionsRequireUser tests that the websocket endpoint is user-scoped.
func TestRouter_SessionsRequireUser(t *testing.T) {
	h, _ := newTestHandlers(t)
	called := false
	sessions := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := handlers.UserIDFromContext(r.Context()); !ok {
			t.Error("session handler reached without user context")
		}
	})
	handler := NewRouter(h, WithSessions(sessions)).Handler()

	if w := serve(handler, http.MethodGet, "/api/ws", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	serve(handler, http.MethodGet, "/api/ws?user_id=11111111-1111-1111-1111-111111111111", "", nil)
	if !called {
		t.Error("session handler not reached with user_id query parameter")
	}
}

// TestNewServer tests the NewServer constructor.
func TestNewServer(t *testing.T) {
	h, _ := newTestHandlers(t)

	server := NewServer("8081", h)
	if server == nil {
		t.Fatal("NewServer() returned nil")
	}
	if server.Addr != ":8081" {
		t.Errorf("NewServer() Addr = %v, want :8081", server.Addr)
	}
	if server.Handler == nil {
		t.Error("NewServer() Handler is nil")
	}
	if server.ReadTimeout != 15*time.Second || server.IdleTimeout != 60*time.Second {
		t.Errorf("NewServer() timeouts = %v/%v", server.ReadTimeout, server.IdleTimeout)
	}
	if server.ReadHeaderTimeout == 0 || server.ReadHeaderTimeout > server.ReadTimeout {
		t.Errorf("NewServer() ReadHeaderTimeout = %v", server.ReadHeaderTimeout)
	}
	if server.ErrorLog == nil {
		t.Error("NewServer() ErrorLog is nil")
	}
	if server.BaseContext != nil {
		t.Error("NewServer() BaseContext set without WithBaseContext")
	}
}

// TestNewServer_BaseContext tests that request contexts derive from the configured base.
func TestNewServer_BaseContext(t *testing.T) {
	h, _ := newTestHandlers(t)
	type key struct{}
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "dashboard"))

	server := NewServer("8081", h, WithBaseContext(ctx))
	if server.BaseContext == nil {
		t.Fatal("NewServer() BaseContext is nil")
	}
	base := server.BaseContext(nil)
	if base.Value(key{}) != "dashboard" {
		t.Error("BaseContext() did not return the configured context")
	}
	cancel()
	if base.Err() == nil {
		t.Error("BaseContext() not cancelled with the configured context")
	}
}
