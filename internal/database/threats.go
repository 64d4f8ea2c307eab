package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

var threatColumns = []string{
	"id", "agent_id", "threat_type", "severity", "description", "source_ip",
	"destination_ip", "port", "protocol", "status", "detected_at", "resolved_at", "created_at",
}

func scanThreat(row rowScanner) (*Threat, error) {
	var t Threat
	if err := row.Scan(
		&t.ID,
		&t.AgentID,
		&t.ThreatType,
		&t.Severity,
		&t.Description,
		&t.SourceIP,
		&t.DestinationIP,
		&t.Port,
		&t.Protocol,
		&t.Status,
		&t.DetectedAt,
		&t.ResolvedAt,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateThreat inserts a threat and returns the stored row.
func (db *DB) CreateThreat(ctx context.Context, in NewThreat) (*Threat, error) {
	query := `
		INSERT INTO threats (agent_id, threat_type, severity, description, source_ip,
			destination_ip, port, protocol, status, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + strings.Join(threatColumns, ", ")

	threat, err := scanThreat(db.conn.QueryRowContext(ctx, query,
		in.AgentID,
		in.ThreatType,
		in.Severity,
		in.Description,
		in.SourceIP,
		in.DestinationIP,
		in.Port,
		in.Protocol,
		in.Status,
		in.DetectedAt,
	))
	if err != nil {
		return nil, wrapError("create threat", err)
	}
	return threat, nil
}

// ListThreats returns threats matching q.
func (db *DB) ListThreats(ctx context.Context, q Query) ([]*Threat, error) {
	query, args, err := q.buildSelect(TableThreats, threatColumns)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list threats: %w", err)
	}
	defer rows.Close()

	threats := []*Threat{}
	for rows.Next() {
		threat, err := scanThreat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threat: %w", err)
		}
		threats = append(threats, threat)
	}
	return threats, rows.Err()
}

// UpdateThreatStatus moves a threat to status. resolved_at is stamped with now
// when the status is resolved and cleared otherwise.
func (db *DB) UpdateThreatStatus(ctx context.Context, threatID string, status ThreatStatus, now time.Time) (*Threat, error) {
	var resolvedAt *time.Time
	if status == ThreatResolved {
		resolvedAt = &now
	}

	query := `
		UPDATE threats
		SET status = $2, resolved_at = $3
		WHERE id = $1
		RETURNING ` + strings.Join(threatColumns, ", ")

	threat, err := scanThreat(db.conn.QueryRowContext(ctx, query, threatID, status, resolvedAt))
	if err != nil {
		return nil, wrapError("update threat status", err)
	}
	return threat, nil
}
