package database

import (
	"context"
	"strings"

	"github.com/lib/pq"
)

var settingsColumns = []string{
	"id", "user_id", "email_notifications", "push_notifications",
	"threat_severity_filter", "auto_resolve_low_threats", "created_at", "updated_at",
}

func scanSettings(row rowScanner) (*UserSettings, error) {
	var s UserSettings
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.EmailNotifications,
		&s.PushNotifications,
		pq.Array(&s.ThreatSeverityFilter),
		&s.AutoResolveLowThreats,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetUserSettings returns the settings row for userID, or ErrNotFound.
func (db *DB) GetUserSettings(ctx context.Context, userID string) (*UserSettings, error) {
	query := `SELECT ` + strings.Join(settingsColumns, ", ") + ` FROM user_settings WHERE user_id = $1`
	s, err := scanSettings(db.conn.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, wrapError("get user settings", err)
	}
	return s, nil
}

// CreateUserSettings inserts a settings row for userID. A concurrent insert for
// the same user surfaces as ErrAlreadyExists.
func (db *DB) CreateUserSettings(ctx context.Context, userID string, in SettingsUpdate) (*UserSettings, error) {
	query := `
		INSERT INTO user_settings (user_id, email_notifications, push_notifications,
			threat_severity_filter, auto_resolve_low_threats)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + strings.Join(settingsColumns, ", ")

	s, err := scanSettings(db.conn.QueryRowContext(ctx, query,
		userID,
		in.EmailNotifications,
		in.PushNotifications,
		pq.Array(in.ThreatSeverityFilter),
		in.AutoResolveLowThreats,
	))
	if err != nil {
		return nil, wrapError("create user settings", err)
	}
	return s, nil
}

// UpdateUserSettings replaces the editable settings of userID.
func (db *DB) UpdateUserSettings(ctx context.Context, userID string, in SettingsUpdate) (*UserSettings, error) {
	query := `
		UPDATE user_settings
		SET email_notifications = $2, push_notifications = $3, threat_severity_filter = $4,
			auto_resolve_low_threats = $5, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + strings.Join(settingsColumns, ", ")

	s, err := scanSettings(db.conn.QueryRowContext(ctx, query,
		userID,
		in.EmailNotifications,
		in.PushNotifications,
		pq.Array(in.ThreatSeverityFilter),
		in.AutoResolveLowThreats,
	))
	if err != nil {
		return nil, wrapError("update user settings", err)
	}
	return s, nil
}
