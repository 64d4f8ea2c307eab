package database

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
)

// ChangeChannel is the default LISTEN/NOTIFY channel row-change triggers
// publish on.
const ChangeChannel = "row_changes"

// MaxRecordPayload is the largest notification, in bytes, that carries the full
// row. Postgres rejects payloads of 8000 bytes or more; above this limit the
// trigger sends only table, op and id, and listeners re-read the row.
const MaxRecordPayload = 7900

var channelPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidChannel reports whether name can be used as a notification channel.
func ValidChannel(name string) bool { return channelPattern.MatchString(name) }

func migrations(channel string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS raspberry_pi_agents (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		agent_name TEXT NOT NULL,
		ip_address TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'offline' CHECK (status IN ('online', 'offline', 'error')),
		last_seen TIMESTAMPTZ,
		cpu_usage DOUBLE PRECISION,
		memory_usage DOUBLE PRECISION,
		disk_usage DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_agents_ip_address ON raspberry_pi_agents(ip_address)`,
		`CREATE TABLE IF NOT EXISTS threats (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		agent_id UUID,
		threat_type TEXT NOT NULL,
		severity TEXT NOT NULL CHECK (severity IN ('low', 'medium', 'high', 'critical')),
		description TEXT NOT NULL,
		source_ip TEXT,
		destination_ip TEXT,
		port INTEGER,
		protocol TEXT,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'investigating', 'resolved')),
		detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
		`CREATE INDEX IF NOT EXISTS idx_threats_detected_at ON threats(detected_at DESC)`,
		`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL,
		threat_id UUID,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('threat', 'system', 'agent')),
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS system_logs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		agent_id UUID,
		log_level TEXT NOT NULL CHECK (log_level IN ('info', 'warning', 'error', 'critical')),
		message TEXT NOT NULL,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
		`CREATE INDEX IF NOT EXISTS idx_system_logs_created_at ON system_logs(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS user_settings (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL,
		email_notifications BOOLEAN NOT NULL DEFAULT TRUE,
		push_notifications BOOLEAN NOT NULL DEFAULT TRUE,
		threat_severity_filter TEXT[] NOT NULL DEFAULT ARRAY['low', 'medium', 'high', 'critical'],
		auto_resolve_low_threats BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_settings_user_id ON user_settings(user_id)`,
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION notify_row_change() RETURNS trigger AS $$
	DECLARE
		payload text;
	BEGIN
		IF TG_OP = 'DELETE' THEN
			PERFORM pg_notify('%[1]s', json_build_object(
				'table', TG_TABLE_NAME, 'op', TG_OP, 'id', OLD.id)::text);
			RETURN OLD;
		END IF;
		payload := json_build_object(
			'table', TG_TABLE_NAME, 'op', TG_OP, 'id', NEW.id, 'record', row_to_json(NEW))::text;
		IF octet_length(payload) > %[2]d THEN
			payload := json_build_object('table', TG_TABLE_NAME, 'op', TG_OP, 'id', NEW.id)::text;
		END IF;
		PERFORM pg_notify('%[1]s', payload);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`, channel, MaxRecordPayload),
		`CREATE OR REPLACE FUNCTION fan_out_threat_notifications() RETURNS trigger AS $$
	BEGIN
		INSERT INTO notifications (user_id, threat_id, title, message, type)
		SELECT s.user_id, NEW.id,
			'New ' || NEW.severity || ' threat detected',
			NEW.threat_type || ': ' || NEW.description,
			'threat'
		FROM user_settings s
		WHERE NEW.severity = ANY(s.threat_severity_filter);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS agents_notify_change ON raspberry_pi_agents`,
		`CREATE TRIGGER agents_notify_change AFTER INSERT OR UPDATE OR DELETE ON raspberry_pi_agents
		FOR EACH ROW EXECUTE FUNCTION notify_row_change()`,
		`DROP TRIGGER IF EXISTS threats_notify_change ON threats`,
		`CREATE TRIGGER threats_notify_change AFTER INSERT OR UPDATE OR DELETE ON threats
		FOR EACH ROW EXECUTE FUNCTION notify_row_change()`,
		`DROP TRIGGER IF EXISTS notifications_notify_change ON notifications`,
		`CREATE TRIGGER notifications_notify_change AFTER INSERT OR UPDATE OR DELETE ON notifications
		FOR EACH ROW EXECUTE FUNCTION notify_row_change()`,
		`DROP TRIGGER IF EXISTS threats_fan_out_notifications ON threats`,
		`CREATE TRIGGER threats_fan_out_notifications AFTER INSERT ON threats
		FOR EACH ROW EXECUTE FUNCTION fan_out_threat_notifications()`,
	}
}

// Migrate creates the schema, indexes and change-notification triggers. The
// triggers notify on channel, which must be the channel the feed listens on.
// Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context, channel string) error {
	if !ValidChannel(channel) {
		return fmt.Errorf("invalid change channel %q", channel)
	}
	stmts := migrations(channel)
	for _, m := range stmts {
		if _, err := db.conn.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %s: %w", firstLine(m), err)
		}
	}
	slog.Info("Database schema is up to date", "statements", len(stmts))
	return nil
}

// resetOrder lists tables child-first.
var resetOrder = []string{TableNotifications, TableThreats, TableSystemLogs, TableAgents, TableUserSettings}

// Reset deletes every row from every table. Triggers still fire, so open
// dashboards see the deletions.
func (db *DB) Reset(ctx context.Context) error {
	for _, table := range resetOrder {
		if _, err := db.conn.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return wrapError("reset "+table, err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
