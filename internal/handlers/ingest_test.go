package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"apt-detection-app/internal/database"
	"apt-detection-app/internal/events"
)

func doRequest(t *testing.T, handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, w, &resp)
	return resp.Error
}

// TestHandlers_RegisterAgent tests agent registration against the mock repository.
func TestHandlers_RegisterAgent(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		createErr      error
		expectedStatus int
		expectedError  string
		expectCreate   bool
	}{
		{
			name:           "successful registration",
			body:           `{"agent_name":"pi-lab","ip_address":"10.0.0.5"}`,
			expectedStatus: http.StatusCreated,
			expectCreate:   true,
		},
		{
			name:           "invalid JSON",
			body:           `not json`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid request body",
		},
		{
			name:           "missing agent_name",
			body:           `{"ip_address":"10.0.0.5"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Missing required fields",
		},
		{
			name:           "missing ip_address",
			body:           `{"agent_name":"pi-lab"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Missing required fields",
		},
		{
			name:           "duplicate ip address",
			body:           `{"agent_name":"pi-lab","ip_address":"10.0.0.5"}`,
			createErr:      database.ErrAlreadyExists,
			expectedStatus: http.StatusConflict,
			expectedError:  "Agent already registered",
			expectCreate:   true,
		},
		{
			name:           "storage failure",
			body:           `{"agent_name":"pi-lab","ip_address":"10.0.0.5"}`,
			createErr:      &pq.Error{Code: "08006", Message: "connection failure"},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "connection failure",
			expectCreate:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got database.NewAgent
			repo := &mockRepository{}
			if tt.createErr != nil {
				repo.CreateAgentFn = func(_ context.Context, in database.NewAgent) (*database.Agent, error) {
					return nil, tt.createErr
				}
			} else {
				repo.CreateAgentFn = func(_ context.Context, in database.NewAgent) (*database.Agent, error) {
					got = in
					return &database.Agent{ID: testAgentID, AgentName: in.AgentName, IPAddress: in.IPAddress, Status: in.Status, LastSeen: in.LastSeen}, nil
				}
			}
			pub := &mockPublisher{}
			h := NewHandlers(repo, pub)

			before := time.Now().UTC()
			w := doRequest(t, h.RegisterAgent, http.MethodPost, "/api/agents/register", tt.body)

			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.expectedStatus, w.Body.String())
			}
			if (repo.Calls["CreateAgent"] == 1) != tt.expectCreate {
				t.Errorf("CreateAgent calls = %d, expectCreate %v", repo.Calls["CreateAgent"], tt.expectCreate)
			}
			if tt.expectedError != "" {
				if msg := errorMessage(t, w); msg != tt.expectedError {
					t.Errorf("error = %q, want %q", msg, tt.expectedError)
				}
				if len(pub.Published) != 0 {
					t.Errorf("published %d events on failure", len(pub.Published))
				}
				return
			}

			var resp AgentResponse
			decodeBody(t, w, &resp)
			if !resp.Success || resp.Agent == nil || resp.Agent.ID != testAgentID {
				t.Errorf("unexpected response %+v", resp)
			}
			if got.Status != database.AgentOnline {
				t.Errorf("status = %q, want online", got.Status)
			}
			if got.LastSeen == nil || got.LastSeen.Before(before) {
				t.Errorf("last_seen = %v, want >= %v", got.LastSeen, before)
			}
			if len(pub.Published) != 1 || pub.Published[0].Type != events.AgentRegistered {
				t.Errorf("published = %+v, want one agent.registered", pub.Published)
			}
		})
	}
}

// TestHandlers_RegisterAgent_UniqueIndex drives a duplicate registration
// through the real gateway and a store that reports a unique violation.
func TestHandlers_RegisterAgent_UniqueIndex(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	db := database.NewWithConn(conn)
	defer db.Close()

	now := time.Now().UTC()
	cols := []string{"id", "agent_name", "ip_address", "status", "last_seen",
		"cpu_usage", "memory_usage", "disk_usage", "created_at", "updated_at"}
	mock.ExpectQuery("INSERT INTO raspberry_pi_agents").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(testAgentID, "pi-lab", "10.0.0.5", "online", now, nil, nil, nil, now, now))
	mock.ExpectQuery("INSERT INTO raspberry_pi_agents").
		WillReturnError(&pq.Error{
			Code:    "23505",
			Message: `duplicate key value violates unique constraint "raspberry_pi_agents_ip_address_key"`,
		})

	h := NewHandlers(db, &mockPublisher{})
	body := `{"agent_name":"pi-lab","ip_address":"10.0.0.5"}`

	first := doRequest(t, h.RegisterAgent, http.MethodPost, "/api/agents/register", body)
	if first.Code != http.StatusCreated {
		t.Fatalf("first registration status = %d, want 201 (body %s)", first.Code, first.Body.String())
	}
	var resp AgentResponse
	decodeBody(t, first, &resp)
	if resp.Agent == nil || resp.Agent.Status != database.AgentOnline {
		t.Errorf("first registration agent = %+v, want online", resp.Agent)
	}

	second := doRequest(t, h.RegisterAgent, http.MethodPost, "/api/agents/register", body)
	if second.Code != http.StatusConflict {
		t.Fatalf("second registration status = %d, want 409", second.Code)
	}
	if msg := errorMessage(t, second); msg != "Agent already registered" {
		t.Errorf("error = %q, want %q", msg, "Agent already registered")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// TestHandlers_Heartbeat tests heartbeat handling.
func TestHandlers_Heartbeat(t *testing.T) {
	t.Run("forces online with server time", func(t *testing.T) {
		var (
			gotID   string
			gotHB   database.Heartbeat
			gotSeen time.Time
		)
		repo := &mockRepository{
			UpdateAgentHeartbeatFn: func(_ context.Context, agentID string, hb database.Heartbeat, seenAt time.Time) error {
				gotID, gotHB, gotSeen = agentID, hb, seenAt
				return nil
			},
		}
		pub := &mockPublisher{}
		h := NewHandlers(repo, pub)

		before := time.Now().UTC()
		w := doRequest(t, h.Heartbeat, http.MethodPost, "/api/agents/heartbeat",
			`{"agent_id":"`+testAgentID+`","cpu_usage":12.5,"memory_usage":40}`)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if strings.TrimSpace(w.Body.String()) != `{"success":true}` {
			t.Errorf("body = %s", w.Body.String())
		}
		if gotID != testAgentID {
			t.Errorf("agent id = %q", gotID)
		}
		if gotSeen.Before(before) {
			t.Errorf("last_seen %v before call time %v", gotSeen, before)
		}
		if gotHB.CPUUsage == nil || *gotHB.CPUUsage != 12.5 {
			t.Errorf("cpu_usage = %v, want 12.5", gotHB.CPUUsage)
		}
		if gotHB.DiskUsage != nil {
			t.Errorf("disk_usage = %v, want nil", *gotHB.DiskUsage)
		}
		if len(pub.Published) != 1 || pub.Published[0].Type != events.AgentHeartbeat {
			t.Errorf("published = %+v", pub.Published)
		}
	})

	t.Run("missing agent_id", func(t *testing.T) {
		repo := &mockRepository{}
		h := NewHandlers(repo, nil)
		w := doRequest(t, h.Heartbeat, http.MethodPost, "/api/agents/heartbeat", `{"cpu_usage":1}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		if msg := errorMessage(t, w); msg != "Missing agent_id" {
			t.Errorf("error = %q", msg)
		}
		if repo.Calls["UpdateAgentHeartbeat"] != 0 {
			t.Error("store was written")
		}
	})

	t.Run("unknown agent still succeeds", func(t *testing.T) {
		repo := &mockRepository{
			UpdateAgentHeartbeatFn: func(context.Context, string, database.Heartbeat, time.Time) error {
				return database.ErrNotFound
			},
		}
		m := &mockMetrics{}
		pub := &mockPublisher{}
		h := NewHandlers(repo, pub, WithMetrics(m))
		w := doRequest(t, h.Heartbeat, http.MethodPost, "/api/agents/heartbeat", `{"agent_id":"ghost"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if len(pub.Published) != 0 {
			t.Error("published event for unknown agent")
		}
		if m.CustomCounts["heartbeat_unknown_agent"] != 1 {
			t.Errorf("custom counts = %v", m.CustomCounts)
		}
	})

	t.Run("storage failure", func(t *testing.T) {
		repo := &mockRepository{
			UpdateAgentHeartbeatFn: func(context.Context, string, database.Heartbeat, time.Time) error {
				return errors.New("connection reset")
			},
		}
		h := NewHandlers(repo, nil)
		w := doRequest(t, h.Heartbeat, http.MethodPost, "/api/agents/heartbeat", `{"agent_id":"`+testAgentID+`"}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", w.Code)
		}
		if msg := errorMessage(t, w); msg != "connection reset" {
			t.Errorf("error = %q", msg)
		}
	})
}

// TestHandlers_SubmitLog tests log submission.
func TestHandlers_SubmitLog(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{"info level", `{"log_level":"info","message":"started"}`, http.StatusCreated, ""},
		{"critical with metadata", `{"log_level":"critical","message":"disk","agent_id":"` + testAgentID + `","metadata":{"disk":"sda"}}`, http.StatusCreated, ""},
		{"debug level rejected", `{"log_level":"debug","message":"noise"}`, http.StatusBadRequest, "Invalid log level"},
		{"missing message", `{"log_level":"info"}`, http.StatusBadRequest, "Missing required fields"},
		{"missing level", `{"message":"x"}`, http.StatusBadRequest, "Missing required fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{}
			pub := &mockPublisher{}
			h := NewHandlers(repo, pub)

			w := doRequest(t, h.SubmitLog, http.MethodPost, "/api/logs", tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.expectedStatus, w.Body.String())
			}
			if tt.expectedError != "" {
				if msg := errorMessage(t, w); msg != tt.expectedError {
					t.Errorf("error = %q, want %q", msg, tt.expectedError)
				}
				if repo.Calls["CreateLog"] != 0 {
					t.Error("log row inserted for rejected request")
				}
				return
			}
			var resp LogResponse
			decodeBody(t, w, &resp)
			if !resp.Success || resp.Log == nil {
				t.Fatalf("unexpected response %s", w.Body.String())
			}
			if len(pub.Published) != 1 || pub.Published[0].Type != events.LogSubmitted {
				t.Errorf("published = %+v", pub.Published)
			}
		})
	}
}

func TestHandlers_SubmitLog_NullOptionals(t *testing.T) {
	var got database.NewLog
	repo := &mockRepository{
		CreateLogFn: func(_ context.Context, in database.NewLog) (*database.SystemLog, error) {
			got = in
			return &database.SystemLog{ID: "log-1", LogLevel: in.LogLevel, Message: in.Message}, nil
		},
	}
	h := NewHandlers(repo, nil)
	w := doRequest(t, h.SubmitLog, http.MethodPost, "/api/logs", `{"log_level":"warning","message":"m","agent_id":"","metadata":null}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if got.AgentID != nil {
		t.Errorf("agent_id = %q, want nil", *got.AgentID)
	}
	if got.Metadata != nil {
		t.Errorf("metadata = %s, want nil", got.Metadata)
	}
}

func TestHandlers_ListLogs(t *testing.T) {
	var got database.Query
	repo := &mockRepository{
		ListLogsFn: func(_ context.Context, q database.Query) ([]*database.SystemLog, error) {
			got = q
			return nil, nil
		},
	}
	h := NewHandlers(repo, nil)

	w := doRequest(t, h.ListLogs, http.MethodGet, "/api/logs?agent_id="+testAgentID+"&log_level=error&limit=-3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"logs":[]}` {
		t.Errorf("body = %s", w.Body.String())
	}
	if got.Limit != DefaultListLimit || got.OrderBy != "created_at" || got.Ascending {
		t.Errorf("query = %+v", got)
	}
	if len(got.Filters) != 2 {
		t.Errorf("filters = %+v, want agent_id and log_level", got.Filters)
	}

	doRequest(t, h.ListLogs, http.MethodGet, "/api/logs?limit=50000", "")
	if got.Limit != MaxListLimit {
		t.Errorf("limit = %d, want %d", got.Limit, MaxListLimit)
	}
}

// TestHandlers_ReportThreat tests threat reporting.
func TestHandlers_ReportThreat(t *testing.T) {
	t.Run("active with detection time and null agent", func(t *testing.T) {
		var got database.NewThreat
		repo := &mockRepository{
			CreateThreatFn: func(_ context.Context, in database.NewThreat) (*database.Threat, error) {
				got = in
				return &database.Threat{
					ID:         testThreatID,
					AgentID:    in.AgentID,
					ThreatType: in.ThreatType,
					Severity:   in.Severity,
					Status:     in.Status,
					DetectedAt: in.DetectedAt,
				}, nil
			},
		}
		pub := &mockPublisher{}
		h := NewHandlers(repo, pub)

		before := time.Now().UTC()
		w := doRequest(t, h.ReportThreat, http.MethodPost, "/api/threats/report",
			`{"threat_type":"port_scan","severity":"high","description":"Sequential SYN","source_ip":"203.0.113.9","port":22}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
		}
		var resp ThreatResponse
		decodeBody(t, w, &resp)
		if !resp.Success || resp.Threat == nil {
			t.Fatalf("unexpected response %s", w.Body.String())
		}
		if resp.Threat.Status != database.ThreatActive {
			t.Errorf("status = %q, want active", resp.Threat.Status)
		}
		if resp.Threat.AgentID != nil {
			t.Errorf("agent_id = %q, want null", *resp.Threat.AgentID)
		}
		if got.DetectedAt.Before(before) {
			t.Errorf("detected_at %v before %v", got.DetectedAt, before)
		}
		if got.Port == nil || *got.Port != 22 {
			t.Errorf("port = %v", got.Port)
		}
		if got.DestinationIP != nil {
			t.Errorf("destination_ip = %q, want nil", *got.DestinationIP)
		}
		if len(pub.Published) != 1 || pub.Published[0].Type != events.ThreatReported {
			t.Errorf("published = %+v", pub.Published)
		}
	})

	tests := []struct {
		name          string
		body          string
		expectedError string
	}{
		{"invalid severity", `{"threat_type":"x","severity":"extreme","description":"d"}`, "Invalid severity level"},
		{"missing description", `{"threat_type":"x","severity":"low"}`, "Missing required fields"},
		{"missing type", `{"severity":"low","description":"d"}`, "Missing required fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{}
			h := NewHandlers(repo, nil)
			w := doRequest(t, h.ReportThreat, http.MethodPost, "/api/threats/report", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if msg := errorMessage(t, w); msg != tt.expectedError {
				t.Errorf("error = %q, want %q", msg, tt.expectedError)
			}
			if repo.Calls["CreateThreat"] != 0 {
				t.Error("threat row inserted for rejected request")
			}
		})
	}
}

func TestHandlers_PublishFailureIsNotSurfaced(t *testing.T) {
	m := &mockMetrics{}
	pub := &mockPublisher{
		PublishFn: func(context.Context, *events.DomainEvent) error { return errors.New("broker down") },
	}
	h := NewHandlers(&mockRepository{}, pub, WithMetrics(m))

	w := doRequest(t, h.ReportThreat, http.MethodPost, "/api/threats/report",
		`{"threat_type":"malware","severity":"critical","description":"d"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if m.Failed[string(events.ThreatReported)] != 1 {
		t.Errorf("failed publishes = %v", m.Failed)
	}
}
