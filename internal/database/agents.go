package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

var agentColumns = []string{
	"id", "agent_name", "ip_address", "status", "last_seen",
	"cpu_usage", "memory_usage", "disk_usage", "created_at", "updated_at",
}

func scanAgent(row rowScanner) (*Agent, error) {
	var a Agent
	if err := row.Scan(
		&a.ID,
		&a.AgentName,
		&a.IPAddress,
		&a.Status,
		&a.LastSeen,
		&a.CPUUsage,
		&a.MemoryUsage,
		&a.DiskUsage,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAgent inserts an agent. A duplicate ip_address is rejected by the
// unique index and surfaces as ErrAlreadyExists.
func (db *DB) CreateAgent(ctx context.Context, in NewAgent) (*Agent, error) {
	query := `
		INSERT INTO raspberry_pi_agents (agent_name, ip_address, status, last_seen)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + strings.Join(agentColumns, ", ")

	agent, err := scanAgent(db.conn.QueryRowContext(ctx, query, in.AgentName, in.IPAddress, in.Status, in.LastSeen))
	if err != nil {
		return nil, wrapError("create agent", err)
	}
	return agent, nil
}

// ListAgents returns agents matching q.
func (db *DB) ListAgents(ctx context.Context, q Query) ([]*Agent, error) {
	query, args, err := q.buildSelect(TableAgents, agentColumns)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	agents := []*Agent{}
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// UpdateAgentHeartbeat marks the agent online, stamps last_seen and replaces
// its resource metrics. Returns ErrNotFound when no agent has that id.
func (db *DB) UpdateAgentHeartbeat(ctx context.Context, agentID string, hb Heartbeat, seenAt time.Time) error {
	query := `
		UPDATE raspberry_pi_agents
		SET status = $2, last_seen = $3, cpu_usage = $4, memory_usage = $5, disk_usage = $6, updated_at = NOW()
		WHERE id = $1
	`
	result, err := db.conn.ExecContext(ctx, query, agentID, AgentOnline, seenAt, hb.CPUUsage, hb.MemoryUsage, hb.DiskUsage)
	if err != nil {
		return wrapError("update agent heartbeat", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}
	return nil
}

// UpdateAgentStatus sets the agent's status and last_seen.
func (db *DB) UpdateAgentStatus(ctx context.Context, agentID string, status AgentStatus, seenAt time.Time) (*Agent, error) {
	query := `
		UPDATE raspberry_pi_agents
		SET status = $2, last_seen = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + strings.Join(agentColumns, ", ")

	agent, err := scanAgent(db.conn.QueryRowContext(ctx, query, agentID, status, seenAt))
	if err != nil {
		return nil, wrapError("update agent status", err)
	}
	return agent, nil
}

// DeleteAgent removes an agent. Threats that reference it keep their agent_id.
func (db *DB) DeleteAgent(ctx context.Context, agentID string) error {
	query := `DELETE FROM raspberry_pi_agents WHERE id = $1`
	result, err := db.conn.ExecContext(ctx, query, agentID)
	if err != nil {
		return wrapError("delete agent", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}
	return nil
}
