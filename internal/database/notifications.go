package database

import (
	"context"
	"fmt"
	"strings"
)

var notificationColumns = []string{
	"id", "user_id", "threat_id", "title", "message", "type", "is_read", "created_at",
}

func scanNotification(row rowScanner) (*Notification, error) {
	var n Notification
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.ThreatID,
		&n.Title,
		&n.Message,
		&n.Type,
		&n.IsRead,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotifications returns notifications matching q.
func (db *DB) ListNotifications(ctx context.Context, q Query) ([]*Notification, error) {
	query, args, err := q.buildSelect(TableNotifications, notificationColumns)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flags one of the user's notifications as read.
func (db *DB) MarkNotificationRead(ctx context.Context, userID, notificationID string) (*Notification, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING ` + strings.Join(notificationColumns, ", ")

	n, err := scanNotification(db.conn.QueryRowContext(ctx, query, notificationID, userID))
	if err != nil {
		return nil, wrapError("mark notification read", err)
	}
	return n, nil
}

// MarkAllNotificationsRead flags every unread notification of the user as read
// and returns how many rows changed.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`
	result, err := db.conn.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, wrapError("mark all notifications read", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// DeleteNotification removes one of the user's notifications.
func (db *DB) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`
	result, err := db.conn.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return wrapError("delete notification", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	return nil
}
