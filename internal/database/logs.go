package database

import (
	"context"
	"fmt"
	"strings"
)

var logColumns = []string{"id", "agent_id", "log_level", "message", "metadata", "created_at"}

func scanLog(row rowScanner) (*SystemLog, error) {
	var (
		l        SystemLog
		metadata []byte
	)
	if err := row.Scan(
		&l.ID,
		&l.AgentID,
		&l.LogLevel,
		&l.Message,
		&metadata,
		&l.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		l.Metadata = metadata
	}
	return &l, nil
}

// CreateLog appends a system log entry.
func (db *DB) CreateLog(ctx context.Context, in NewLog) (*SystemLog, error) {
	var metadata any
	if len(in.Metadata) > 0 {
		metadata = string(in.Metadata)
	}

	query := `
		INSERT INTO system_logs (agent_id, log_level, message, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + strings.Join(logColumns, ", ")

	entry, err := scanLog(db.conn.QueryRowContext(ctx, query, in.AgentID, in.LogLevel, in.Message, metadata))
	if err != nil {
		return nil, wrapError("create log", err)
	}
	return entry, nil
}

// ListLogs returns system logs matching q.
func (db *DB) ListLogs(ctx context.Context, q Query) ([]*SystemLog, error) {
	query, args, err := q.buildSelect(TableSystemLogs, logColumns)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	logs := []*SystemLog{}
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
