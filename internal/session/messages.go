package session

import (
	"apt-detection-app/internal/database"
	"apt-detection-app/internal/state"
	"apt-detection-app/internal/viewsync"
)

// Client message types.
const (
	MsgView   = "view"
	MsgFilter = "filter"
	MsgAction = "action"
)

// Server message types.
const (
	MsgSnapshot = "snapshot"
	MsgError    = "error"
)

// Actions a client may request.
const (
	ActionMarkRead           = "mark_read"
	ActionMarkAllRead        = "mark_all_read"
	ActionDeleteNotification = "delete_notification"
	ActionUpdateThreatStatus = "update_threat_status"
	ActionAddAgent           = "add_agent"
	ActionStartAgent         = "start_agent"
	ActionStopAgent          = "stop_agent"
	ActionDeleteAgent        = "delete_agent"
)

// SortSeverity orders the threat list by severity instead of recency.
const SortSeverity = "severity"

// ClientMessage is a message received from the browser.
type ClientMessage struct {
	Type string `json:"type"`

	// view
	View viewsync.View `json:"view,omitempty"`

	// filter
	Filter *state.ThreatFilter `json:"filter,omitempty"`
	Sort   string              `json:"sort,omitempty"`

	// action
	Action    string `json:"action,omitempty"`
	ID        string `json:"id,omitempty"`
	Status    string `json:"status,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

// ServerMessage is a message sent to the browser.
type ServerMessage struct {
	Type    string        `json:"type"`
	View    viewsync.View `json:"view,omitempty"`
	Version uint64        `json:"version,omitempty"`
	Data    *SnapshotData `json:"data,omitempty"`
	Action  string        `json:"action,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// ThreatRow is a threat as displayed, with its agent's name resolved when the
// agent is known.
type ThreatRow struct {
	database.Threat
	AgentName *string `json:"agent_name"`
}

// SnapshotData is the rendered state of the active view.
type SnapshotData struct {
	Threats       []ThreatRow             `json:"threats"`
	Agents        []database.Agent        `json:"agents"`
	Notifications []database.Notification `json:"notifications"`
	UnreadCount   int                     `json:"unread_count"`
	Stats         state.Stats             `json:"stats"`
}
