package database

import (
	"context"
	"encoding/json"
	"fmt"
)

var recordTables = map[string]bool{
	TableAgents:        true,
	TableThreats:       true,
	TableNotifications: true,
	TableSystemLogs:    true,
	TableUserSettings:  true,
}

// FetchRecord returns the current row of table with the given id, encoded the
// way the row-change trigger encodes it. It backs change notifications that
// were too large to carry the row.
func (db *DB) FetchRecord(ctx context.Context, table, id string) (json.RawMessage, error) {
	if !recordTables[table] {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	query := `SELECT row_to_json(t) FROM ` + table + ` t WHERE t.id = $1`
	var raw []byte
	if err := db.conn.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		return nil, wrapError("fetch "+table+" record", err)
	}
	return json.RawMessage(raw), nil
}
