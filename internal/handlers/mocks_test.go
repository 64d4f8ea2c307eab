// Package handlers provides test mocks for handler dependencies.
package handlers

import (
	"context"
	"time"

	"apt-detection-app/internal/database"
	"apt-detection-app/internal/events"
	"apt-detection-app/internal/metrics"
)

const (
	testUserID   = "11111111-1111-1111-1111-111111111111"
	testAgentID  = "22222222-2222-2222-2222-222222222222"
	testThreatID = "33333333-3333-3333-3333-333333333333"
	testNotifID  = "44444444-4444-4444-4444-444444444444"
)

// mockRepository implements Repository interface for testing.
type mockRepository struct {
	// Callbacks for each method (set these to control behavior)
	CreateAgentFn              func(ctx context.Context, in database.NewAgent) (*database.Agent, error)
	ListAgentsFn               func(ctx context.Context, q database.Query) ([]*database.Agent, error)
	UpdateAgentHeartbeatFn     func(ctx context.Context, agentID string, hb database.Heartbeat, seenAt time.Time) error
	UpdateAgentStatusFn        func(ctx context.Context, agentID string, status database.AgentStatus, seenAt time.Time) (*database.Agent, error)
	DeleteAgentFn              func(ctx context.Context, agentID string) error
	CreateThreatFn             func(ctx context.Context, in database.NewThreat) (*database.Threat, error)
	ListThreatsFn              func(ctx context.Context, q database.Query) ([]*database.Threat, error)
	UpdateThreatStatusFn       func(ctx context.Context, threatID string, status database.ThreatStatus, now time.Time) (*database.Threat, error)
	CreateLogFn                func(ctx context.Context, in database.NewLog) (*database.SystemLog, error)
	ListLogsFn                 func(ctx context.Context, q database.Query) ([]*database.SystemLog, error)
	ListNotificationsFn        func(ctx context.Context, q database.Query) ([]*database.Notification, error)
	MarkNotificationReadFn     func(ctx context.Context, userID, notificationID string) (*database.Notification, error)
	MarkAllNotificationsReadFn func(ctx context.Context, userID string) (int64, error)
	DeleteNotificationFn       func(ctx context.Context, userID, notificationID string) error
	GetUserSettingsFn          func(ctx context.Context, userID string) (*database.UserSettings, error)
	CreateUserSettingsFn       func(ctx context.Context, userID string, in database.SettingsUpdate) (*database.UserSettings, error)
	UpdateUserSettingsFn       func(ctx context.Context, userID string, in database.SettingsUpdate) (*database.UserSettings, error)

	// Calls counts invocations by method name.
	Calls map[string]int
}

func (m *mockRepository) called(name string) {
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[name]++
}

func (m *mockRepository) CreateAgent(ctx context.Context, in database.NewAgent) (*database.Agent, error) {
	m.called("CreateAgent")
	if m.CreateAgentFn != nil {
		return m.CreateAgentFn(ctx, in)
	}
	return &database.Agent{ID: testAgentID, AgentName: in.AgentName, IPAddress: in.IPAddress, Status: in.Status, LastSeen: in.LastSeen}, nil
}

func (m *mockRepository) ListAgents(ctx context.Context, q database.Query) ([]*database.Agent, error) {
	m.called("ListAgents")
	if m.ListAgentsFn != nil {
		return m.ListAgentsFn(ctx, q)
	}
	return []*database.Agent{}, nil
}

func (m *mockRepository) UpdateAgentHeartbeat(ctx context.Context, agentID string, hb database.Heartbeat, seenAt time.Time) error {
	m.called("UpdateAgentHeartbeat")
	if m.UpdateAgentHeartbeatFn != nil {
		return m.UpdateAgentHeartbeatFn(ctx, agentID, hb, seenAt)
	}
	return nil
}

func (m *mockRepository) UpdateAgentStatus(ctx context.Context, agentID string, status database.AgentStatus, seenAt time.Time) (*database.Agent, error) {
	m.called("UpdateAgentStatus")
	if m.UpdateAgentStatusFn != nil {
		return m.UpdateAgentStatusFn(ctx, agentID, status, seenAt)
	}
	return &database.Agent{ID: agentID, Status: status, LastSeen: &seenAt}, nil
}

func (m *mockRepository) DeleteAgent(ctx context.Context, agentID string) error {
	m.called("DeleteAgent")
	if m.DeleteAgentFn != nil {
		return m.DeleteAgentFn(ctx, agentID)
	}
	return nil
}

func (m *mockRepository) CreateThreat(ctx context.Context, in database.NewThreat) (*database.Threat, error) {
	m.called("CreateThreat")
	if m.CreateThreatFn != nil {
		return m.CreateThreatFn(ctx, in)
	}
	return &database.Threat{
		ID:            testThreatID,
		AgentID:       in.AgentID,
		ThreatType:    in.ThreatType,
		Severity:      in.Severity,
		Description:   in.Description,
		SourceIP:      in.SourceIP,
		DestinationIP: in.DestinationIP,
		Port:          in.Port,
		Protocol:      in.Protocol,
		Status:        in.Status,
		DetectedAt:    in.DetectedAt,
		CreatedAt:     in.DetectedAt,
	}, nil
}

func (m *mockRepository) ListThreats(ctx context.Context, q database.Query) ([]*database.Threat, error) {
	m.called("ListThreats")
	if m.ListThreatsFn != nil {
		return m.ListThreatsFn(ctx, q)
	}
	return []*database.Threat{}, nil
}

func (m *mockRepository) UpdateThreatStatus(ctx context.Context, threatID string, status database.ThreatStatus, now time.Time) (*database.Threat, error) {
	m.called("UpdateThreatStatus")
	if m.UpdateThreatStatusFn != nil {
		return m.UpdateThreatStatusFn(ctx, threatID, status, now)
	}
	t := &database.Threat{ID: threatID, Status: status, Severity: database.SeverityHigh}
	if status == database.ThreatResolved {
		t.ResolvedAt = &now
	}
	return t, nil
}

func (m *mockRepository) CreateLog(ctx context.Context, in database.NewLog) (*database.SystemLog, error) {
	m.called("CreateLog")
	if m.CreateLogFn != nil {
		return m.CreateLogFn(ctx, in)
	}
	return &database.SystemLog{ID: "log-1", AgentID: in.AgentID, LogLevel: in.LogLevel, Message: in.Message, Metadata: in.Metadata}, nil
}

func (m *mockRepository) ListLogs(ctx context.Context, q database.Query) ([]*database.SystemLog, error) {
	m.called("ListLogs")
	if m.ListLogsFn != nil {
		return m.ListLogsFn(ctx, q)
	}
	return []*database.SystemLog{}, nil
}

func (m *mockRepository) ListNotifications(ctx context.Context, q database.Query) ([]*database.Notification, error) {
	m.called("ListNotifications")
	if m.ListNotificationsFn != nil {
		return m.ListNotificationsFn(ctx, q)
	}
	return []*database.Notification{}, nil
}

func (m *mockRepository) MarkNotificationRead(ctx context.Context, userID, notificationID string) (*database.Notification, error) {
	m.called("MarkNotificationRead")
	if m.MarkNotificationReadFn != nil {
		return m.MarkNotificationReadFn(ctx, userID, notificationID)
	}
	return &database.Notification{ID: notificationID, UserID: userID, IsRead: true}, nil
}

func (m *mockRepository) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	m.called("MarkAllNotificationsRead")
	if m.MarkAllNotificationsReadFn != nil {
		return m.MarkAllNotificationsReadFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockRepository) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	m.called("DeleteNotification")
	if m.DeleteNotificationFn != nil {
		return m.DeleteNotificationFn(ctx, userID, notificationID)
	}
	return nil
}

func (m *mockRepository) GetUserSettings(ctx context.Context, userID string) (*database.UserSettings, error) {
	m.called("GetUserSettings")
	if m.GetUserSettingsFn != nil {
		return m.GetUserSettingsFn(ctx, userID)
	}
	return nil, database.ErrNotFound
}

func (m *mockRepository) CreateUserSettings(ctx context.Context, userID string, in database.SettingsUpdate) (*database.UserSettings, error) {
	m.called("CreateUserSettings")
	if m.CreateUserSettingsFn != nil {
		return m.CreateUserSettingsFn(ctx, userID, in)
	}
	return settingsFrom(userID, in), nil
}

func (m *mockRepository) UpdateUserSettings(ctx context.Context, userID string, in database.SettingsUpdate) (*database.UserSettings, error) {
	m.called("UpdateUserSettings")
	if m.UpdateUserSettingsFn != nil {
		return m.UpdateUserSettingsFn(ctx, userID, in)
	}
	return settingsFrom(userID, in), nil
}

func settingsFrom(userID string, in database.SettingsUpdate) *database.UserSettings {
	return &database.UserSettings{
		ID:                    "settings-1",
		UserID:                userID,
		EmailNotifications:    in.EmailNotifications,
		PushNotifications:     in.PushNotifications,
		ThreatSeverityFilter:  in.ThreatSeverityFilter,
		AutoResolveLowThreats: in.AutoResolveLowThreats,
	}
}

// mockPublisher implements producer.EventPublisher for testing.
type mockPublisher struct {
	PublishFn func(ctx context.Context, event *events.DomainEvent) error
	Published []*events.DomainEvent // Records all published events
}

func (m *mockPublisher) Publish(ctx context.Context, event *events.DomainEvent) error {
	m.Published = append(m.Published, event)
	if m.PublishFn != nil {
		return m.PublishFn(ctx, event)
	}
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

// mockMetrics implements MetricsRecorder interface for testing.
type mockMetrics struct {
	Published    map[string]int
	Failed       map[string]int
	CustomCounts map[string]int
}

func (m *mockMetrics) EventPublished(eventType string, ok bool) {
	if m.Published == nil {
		m.Published = make(map[string]int)
		m.Failed = make(map[string]int)
	}
	if ok {
		m.Published[eventType]++
	} else {
		m.Failed[eventType]++
	}
}

func (m *mockMetrics) IncrementCustom(name string) {
	if m.CustomCounts == nil {
		m.CustomCounts = make(map[string]int)
	}
	m.CustomCounts[name]++
}

// mockMetricsReader implements ServiceMetricsReader for testing.
type mockMetricsReader struct {
	GetServiceMetricsFn    func(ctx context.Context, name string) (*metrics.ServiceMetrics, error)
	GetAllServiceMetricsFn func(ctx context.Context) (map[string]*metrics.ServiceMetrics, error)
}

func (m *mockMetricsReader) GetServiceMetrics(ctx context.Context, name string) (*metrics.ServiceMetrics, error) {
	if m.GetServiceMetricsFn != nil {
		return m.GetServiceMetricsFn(ctx, name)
	}
	return nil, metrics.ErrNoMetrics
}

func (m *mockMetricsReader) GetAllServiceMetrics(ctx context.Context) (map[string]*metrics.ServiceMetrics, error) {
	if m.GetAllServiceMetricsFn != nil {
		return m.GetAllServiceMetricsFn(ctx)
	}
	return map[string]*metrics.ServiceMetrics{}, nil
}
