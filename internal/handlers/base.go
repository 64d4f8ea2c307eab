// Package handlers provides the HTTP handlers for sensor ingestion and operator
// actions. The operator actions are also exposed as methods for websocket sessions.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"apt-detection-app/internal/database"
	"apt-detection-app/internal/events"
	"apt-detection-app/internal/metrics"
	"apt-detection-app/internal/producer"
)

// Repository defines the gateway operations the handlers use.
// *database.DB implements it; tests substitute a mock.
type Repository interface {
	CreateAgent(ctx context.Context, in database.NewAgent) (*database.Agent, error)
	ListAgents(ctx context.Context, q database.Query) ([]*database.Agent, error)
	UpdateAgentHeartbeat(ctx context.Context, agentID string, hb database.Heartbeat, seenAt time.Time) error
	UpdateAgentStatus(ctx context.Context, agentID string, status database.AgentStatus, seenAt time.Time) (*database.Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error

	CreateThreat(ctx context.Context, in database.NewThreat) (*database.Threat, error)
	ListThreats(ctx context.Context, q database.Query) ([]*database.Threat, error)
	UpdateThreatStatus(ctx context.Context, threatID string, status database.ThreatStatus, now time.Time) (*database.Threat, error)

	CreateLog(ctx context.Context, in database.NewLog) (*database.SystemLog, error)
	ListLogs(ctx context.Context, q database.Query) ([]*database.SystemLog, error)

	ListNotifications(ctx context.Context, q database.Query) ([]*database.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) (*database.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, notificationID string) error

	GetUserSettings(ctx context.Context, userID string) (*database.UserSettings, error)
	CreateUserSettings(ctx context.Context, userID string, in database.SettingsUpdate) (*database.UserSettings, error)
	UpdateUserSettings(ctx context.Context, userID string, in database.SettingsUpdate) (*database.UserSettings, error)
}

// Ensure *database.DB implements Repository.
var _ Repository = (*database.DB)(nil)

// MetricsRecorder defines the interface for recording handler metrics.
type MetricsRecorder interface {
	EventPublished(eventType string, ok bool)
	IncrementCustom(name string)
}

// NoOpMetrics is a no-op implementation of MetricsRecorder.
type NoOpMetrics struct{}

// Ensure NoOpMetrics implements MetricsRecorder.
var _ MetricsRecorder = NoOpMetrics{}

func (NoOpMetrics) EventPublished(string, bool) {}
func (NoOpMetrics) IncrementCustom(string)      {}

// ServiceMetricsReader reads the per-service snapshots kept in Redis.
type ServiceMetricsReader interface {
	GetServiceMetrics(ctx context.Context, serviceName string) (*metrics.ServiceMetrics, error)
	GetAllServiceMetrics(ctx context.Context) (map[string]*metrics.ServiceMetrics, error)
}

// Handlers wraps the dependencies of the HTTP handlers.
type Handlers struct {
	db            Repository
	producer      producer.EventPublisher
	metrics       MetricsRecorder
	metricsReader ServiceMetricsReader
	knownServices []string
	now           func() time.Time
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(h *Handlers) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithMetricsReader enables the service metrics endpoint. knownServices are
// reported as offline when they have no snapshot.
func WithMetricsReader(r ServiceMetricsReader, knownServices ...string) Option {
	return func(h *Handlers) {
		h.metricsReader = r
		h.knownServices = knownServices
	}
}

// WithClock overrides the server clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandlers creates the handlers. prod may be nil, in which case no domain
// events are published.
func NewHandlers(db Repository, prod producer.EventPublisher, opts ...Option) *Handlers {
	h := &Handlers{
		db:       db,
		producer: prod,
		metrics:  NoOpMetrics{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// publish sends a domain event after a successful write. Failures are logged
// and counted; they never fail the request.
func (h *Handlers) publish(ctx context.Context, event *events.DomainEvent) {
	if h.producer == nil {
		return
	}
	if err := h.producer.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish domain event",
			"type", event.Type,
			"aggregate_id", event.AggregateID,
			"error", err,
		)
		h.metrics.EventPublished(string(event.Type), false)
		return
	}
	h.metrics.EventPublished(string(event.Type), true)
}
