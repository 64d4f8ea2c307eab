package handlers

import (
	"context"
	"log/slog"

	"apt-detection-app/internal/database"
	"apt-detection-app/internal/events"
)

// Actions are the operator operations a dashboard session can run. *Handlers
// implements it; every method returns an error of the handler taxonomy.
type Actions interface {
	SetThreatStatus(ctx context.Context, threatID string, status database.ThreatStatus) (*database.Threat, error)
	AddAgent(ctx context.Context, name, ipAddress string) (*database.Agent, error)
	StartAgent(ctx context.Context, agentID string) (*database.Agent, error)
	StopAgent(ctx context.Context, agentID string) (*database.Agent, error)
	RemoveAgent(ctx context.Context, agentID string) error
	MarkNotificationRead(ctx context.Context, userID, notificationID string) (*database.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	RemoveNotification(ctx context.Context, userID, notificationID string) error
}

var _ Actions = (*Handlers)(nil)

// SetThreatStatus moves a threat to status. Resolving stamps resolved_at;
// any other status clears it.
func (h *Handlers) SetThreatStatus(ctx context.Context, threatID string, status database.ThreatStatus) (*database.Threat, error) {
	if err := validID(threatID); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid("Invalid status")
	}

	threat, err := h.db.UpdateThreatStatus(ctx, threatID, status, h.now())
	if err != nil {
		return nil, classify(err, "Threat", threatID, "")
	}

	slog.Info("Threat status changed", "threat_id", threatID, "status", status)
	h.publish(ctx, events.ForThreatStatus(threat))
	return threat, nil
}

// AddAgent inserts an agent by hand. Unlike registration it starts offline.
func (h *Handlers) AddAgent(ctx context.Context, name, ipAddress string) (*database.Agent, error) {
	if blank(name) || blank(ipAddress) {
		return nil, invalid("Missing required fields")
	}

	agent, err := h.db.CreateAgent(ctx, database.NewAgent{
		AgentName: name,
		IPAddress: ipAddress,
		Status:    database.AgentOffline,
	})
	if err != nil {
		return nil, classify(err, "Agent", ipAddress, "Agent already registered")
	}

	slog.Info("Agent added", "agent_id", agent.ID, "agent_name", agent.AgentName, "ip_address", agent.IPAddress)
	h.publish(ctx, events.ForAgentRegistered(agent))
	return agent, nil
}

// StartAgent marks an agent online.
func (h *Handlers) StartAgent(ctx context.Context, agentID string) (*database.Agent, error) {
	return h.setAgentStatus(ctx, agentID, database.AgentOnline)
}

// StopAgent marks an agent offline.
func (h *Handlers) StopAgent(ctx context.Context, agentID string) (*database.Agent, error) {
	return h.setAgentStatus(ctx, agentID, database.AgentOffline)
}

func (h *Handlers) setAgentStatus(ctx context.Context, agentID string, status database.AgentStatus) (*database.Agent, error) {
	if err := validID(agentID); err != nil {
		return nil, err
	}

	agent, err := h.db.UpdateAgentStatus(ctx, agentID, status, h.now())
	if err != nil {
		return nil, classify(err, "Agent", agentID, "")
	}

	slog.Info("Agent status changed", "agent_id", agentID, "status", status)
	h.publish(ctx, events.ForAgentStatus(agent))
	return agent, nil
}

// RemoveAgent deletes an agent. Threats keep their agent_id.
func (h *Handlers) RemoveAgent(ctx context.Context, agentID string) error {
	if err := validID(agentID); err != nil {
		return err
	}
	if err := h.db.DeleteAgent(ctx, agentID); err != nil {
		return classify(err, "Agent", agentID, "")
	}

	slog.Info("Agent deleted", "agent_id", agentID)
	h.publish(ctx, events.ForAgentDeleted(agentID))
	return nil
}

// MarkNotificationRead marks one of the user's notifications read.
func (h *Handlers) MarkNotificationRead(ctx context.Context, userID, notificationID string) (*database.Notification, error) {
	if err := validID(notificationID); err != nil {
		return nil, err
	}

	n, err := h.db.MarkNotificationRead(ctx, userID, notificationID)
	if err != nil {
		return nil, classify(err, "Notification", notificationID, "")
	}
	return n, nil
}

// MarkAllNotificationsRead marks every unread notification of the user read
// and returns how many changed.
func (h *Handlers) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	n, err := h.db.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, classify(err, "Notification", userID, "")
	}
	slog.Debug("Marked notifications read", "user_id", userID, "updated", n)
	return n, nil
}

// RemoveNotification deletes one of the user's notifications.
func (h *Handlers) RemoveNotification(ctx context.Context, userID, notificationID string) error {
	if err := validID(notificationID); err != nil {
		return err
	}
	if err := h.db.DeleteNotification(ctx, userID, notificationID); err != nil {
		return classify(err, "Notification", notificationID, "")
	}
	return nil
}
