// Package events defines the domain events published after successful writes.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"apt-detection-app/internal/database"
)

// SchemaVersion is stamped on every event and its Kafka headers.
const SchemaVersion = 1

// Type names a domain event.
type Type string

const (
	AgentRegistered     Type = "agent.registered"
	AgentHeartbeat      Type = "agent.heartbeat"
	AgentStatusChanged  Type = "agent.status_changed"
	AgentDeleted        Type = "agent.deleted"
	LogSubmitted        Type = "log.submitted"
	ThreatReported      Type = "threat.reported"
	ThreatStatusChanged Type = "threat.status_changed"
)

// DomainEvent is one fact about the system. AggregateID is the id of the row
// the event is about and is used as the Kafka partition key.
type DomainEvent struct {
	EventID       string         `json:"event_id"`
	Type          Type           `json:"type"`
	AggregateID   string         `json:"aggregate_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	SchemaVersion int            `json:"schema_version"`
	Attributes    map[string]any `json:"attributes"`
}

// New creates an event with a fresh id stamped at the current time.
func New(t Type, aggregateID string, attrs map[string]any) *DomainEvent {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &DomainEvent{
		EventID:       uuid.NewString(),
		Type:          t,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Attributes:    attrs,
	}
}

// ToProto converts the event to a protobuf Struct. Attribute values must be
// plain JSON-like values (string, number, bool, nil, map, slice).
func (e *DomainEvent) ToProto() (*structpb.Struct, error) {
	attrs, err := structpb.NewStruct(e.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to convert attributes of %s: %w", e.Type, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"event_id":       structpb.NewStringValue(e.EventID),
		"type":           structpb.NewStringValue(string(e.Type)),
		"aggregate_id":   structpb.NewStringValue(e.AggregateID),
		"occurred_at":    structpb.NewStringValue(e.OccurredAt.Format(time.RFC3339Nano)),
		"schema_version": structpb.NewNumberValue(float64(e.SchemaVersion)),
		"attributes":     structpb.NewStructValue(attrs),
	}}, nil
}

// ForAgentRegistered builds the event for a newly registered or added agent.
func ForAgentRegistered(a *database.Agent) *DomainEvent {
	return New(AgentRegistered, a.ID, map[string]any{
		"agent_name": a.AgentName,
		"ip_address": a.IPAddress,
		"status":     string(a.Status),
	})
}

// ForHeartbeat builds the event for an accepted heartbeat. Absent metrics are null.
func ForHeartbeat(agentID string, hb database.Heartbeat, seenAt time.Time) *DomainEvent {
	return New(AgentHeartbeat, agentID, map[string]any{
		"cpu_usage":    floatOrNil(hb.CPUUsage),
		"memory_usage": floatOrNil(hb.MemoryUsage),
		"disk_usage":   floatOrNil(hb.DiskUsage),
		"last_seen":    seenAt.UTC().Format(time.RFC3339Nano),
	})
}

// ForAgentStatus builds the event for an operator start or stop.
func ForAgentStatus(a *database.Agent) *DomainEvent {
	return New(AgentStatusChanged, a.ID, map[string]any{
		"status": string(a.Status),
	})
}

// ForAgentDeleted builds the event for a removed agent.
func ForAgentDeleted(agentID string) *DomainEvent {
	return New(AgentDeleted, agentID, nil)
}

// ForLog builds the event for a submitted system log.
func ForLog(l *database.SystemLog) *DomainEvent {
	return New(LogSubmitted, l.ID, map[string]any{
		"agent_id":  stringOrNil(l.AgentID),
		"log_level": string(l.LogLevel),
		"message":   l.Message,
	})
}

// ForThreatReported builds the event for a reported threat.
func ForThreatReported(t *database.Threat) *DomainEvent {
	return New(ThreatReported, t.ID, map[string]any{
		"agent_id":    stringOrNil(t.AgentID),
		"threat_type": t.ThreatType,
		"severity":    string(t.Severity),
		"status":      string(t.Status),
		"detected_at": t.DetectedAt.UTC().Format(time.RFC3339Nano),
	})
}

// ForThreatStatus builds the event for a triage status change.
func ForThreatStatus(t *database.Threat) *DomainEvent {
	attrs := map[string]any{
		"status":      string(t.Status),
		"resolved_at": nil,
	}
	if t.ResolvedAt != nil {
		attrs["resolved_at"] = t.ResolvedAt.UTC().Format(time.RFC3339Nano)
	}
	return New(ThreatStatusChanged, t.ID, attrs)
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
