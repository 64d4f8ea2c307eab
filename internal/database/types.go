package database

import (
	"encoding/json"
	"time"
)

// Table names double as change-feed collection names.
const (
	TableAgents        = "raspberry_pi_agents"
	TableThreats       = "threats"
	TableNotifications = "notifications"
	TableSystemLogs    = "system_logs"
	TableUserSettings  = "user_settings"
)

// Severity ranks a threat; values are ordered ascending by risk.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AllSeverities lists every severity in ascending order.
var AllSeverities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank returns the ordinal of the severity, or -1 if unknown.
func (s Severity) Rank() int {
	for i, v := range AllSeverities {
		if v == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s.Rank() >= 0 }

// ThreatStatus is the triage state of a threat.
type ThreatStatus string

const (
	ThreatActive        ThreatStatus = "active"
	ThreatInvestigating ThreatStatus = "investigating"
	ThreatResolved      ThreatStatus = "resolved"
)

func (s ThreatStatus) Valid() bool {
	switch s {
	case ThreatActive, ThreatInvestigating, ThreatResolved:
		return true
	}
	return false
}

// AgentStatus is the liveness state of an agent.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
	AgentError   AgentStatus = "error"
)

func (s AgentStatus) Valid() bool {
	switch s {
	case AgentOnline, AgentOffline, AgentError:
		return true
	}
	return false
}

// LogLevel is the level of a system log entry.
type LogLevel string

const (
	LogInfo     LogLevel = "info"
	LogWarning  LogLevel = "warning"
	LogError    LogLevel = "error"
	LogCritical LogLevel = "critical"
)

func (l LogLevel) Valid() bool {
	switch l {
	case LogInfo, LogWarning, LogError, LogCritical:
		return true
	}
	return false
}

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationThreat NotificationType = "threat"
	NotificationAgent  NotificationType = "agent"
	NotificationSystem NotificationType = "system"
)

// Agent represents a row in raspberry_pi_agents.
type Agent struct {
	ID          string      `json:"id"`
	AgentName   string      `json:"agent_name"`
	IPAddress   string      `json:"ip_address"`
	Status      AgentStatus `json:"status"`
	LastSeen    *time.Time  `json:"last_seen"`
	CPUUsage    *float64    `json:"cpu_usage"`
	MemoryUsage *float64    `json:"memory_usage"`
	DiskUsage   *float64    `json:"disk_usage"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Threat represents a row in threats. AgentID is a weak reference and may
// point at an agent that no longer exists.
type Threat struct {
	ID            string       `json:"id"`
	AgentID       *string      `json:"agent_id"`
	ThreatType    string       `json:"threat_type"`
	Severity      Severity     `json:"severity"`
	Description   string       `json:"description"`
	SourceIP      *string      `json:"source_ip"`
	DestinationIP *string      `json:"destination_ip"`
	Port          *int         `json:"port"`
	Protocol      *string      `json:"protocol"`
	Status        ThreatStatus `json:"status"`
	DetectedAt    time.Time    `json:"detected_at"`
	ResolvedAt    *time.Time   `json:"resolved_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Notification represents a row in notifications. ThreatID is a weak reference.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	ThreatID  *string          `json:"threat_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// SystemLog represents a row in system_logs.
type SystemLog struct {
	ID        string          `json:"id"`
	AgentID   *string         `json:"agent_id"`
	LogLevel  LogLevel        `json:"log_level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// UserSettings represents a row in user_settings.
type UserSettings struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	EmailNotifications    bool      `json:"email_notifications"`
	PushNotifications     bool      `json:"push_notifications"`
	ThreatSeverityFilter  []string  `json:"threat_severity_filter"`
	AutoResolveLowThreats bool      `json:"auto_resolve_low_threats"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// NewAgent holds the fields supplied when inserting an agent.
type NewAgent struct {
	AgentName string
	IPAddress string
	Status    AgentStatus
	LastSeen  *time.Time
}

// Heartbeat holds the metrics an agent reports with each heartbeat.
// Nil fields are stored as NULL.
type Heartbeat struct {
	CPUUsage    *float64
	MemoryUsage *float64
	DiskUsage   *float64
}

// NewThreat holds the fields supplied when inserting a threat.
type NewThreat struct {
	AgentID       *string
	ThreatType    string
	Severity      Severity
	Description   string
	SourceIP      *string
	DestinationIP *string
	Port          *int
	Protocol      *string
	Status        ThreatStatus
	DetectedAt    time.Time
}

// NewLog holds the fields supplied when inserting a system log.
type NewLog struct {
	AgentID  *string
	LogLevel LogLevel
	Message  string
	Metadata json.RawMessage
}

// SettingsUpdate holds the editable user settings.
type SettingsUpdate struct {
	EmailNotifications    bool
	PushNotifications     bool
	ThreatSeverityFilter  []string
	AutoResolveLowThreats bool
}

// DefaultSettings returns the values a user's settings row is created with.
func DefaultSettings() SettingsUpdate {
	filter := make([]string, len(AllSeverities))
	for i, s := range AllSeverities {
		filter[i] = string(s)
	}
	return SettingsUpdate{
		EmailNotifications:   true,
		PushNotifications:    true,
		ThreatSeverityFilter: filter,
	}
}
