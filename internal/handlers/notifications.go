package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"apt-detection-app/internal/database"
)

// NotificationsResponse wraps the user's notifications.
type NotificationsResponse struct {
	Notifications []*database.Notification `json:"notifications"`
	UnreadCount   int                      `json:"unread_count"`
}

// NotificationResponse wraps a single notification.
type NotificationResponse struct {
	Success      bool                   `json:"success"`
	Notification *database.Notification `json:"notification"`
}

// MarkAllResponse reports how many notifications were marked read.
type MarkAllResponse struct {
	Success bool  `json:"success"`
	Updated int64 `json:"updated"`
}

// ListNotifications returns the current user's notifications, newest first.
// GET /api/notifications
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := database.Query{OrderBy: "created_at", Limit: parseLimit(r)}.Where("user_id", userID(r))

	list, err := h.db.ListNotifications(r.Context(), q)
	if err != nil {
		writeError(w, &StorageError{Err: err})
		return
	}
	if list == nil {
		list = []*database.Notification{}
	}
	unread := 0
	for _, n := range list {
		if !n.IsRead {
			unread++
		}
	}
	writeJSON(w, http.StatusOK, NotificationsResponse{Notifications: list, UnreadCount: unread})
}

// MarkNotificationReadHandler marks one notification read.
// POST /api/notifications/{id}/read
func (h *Handlers) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	n, err := h.MarkNotificationRead(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NotificationResponse{Success: true, Notification: n})
}

// MarkAllNotificationsReadHandler marks all of the user's notifications read.
// POST /api/notifications/read-all
func (h *Handlers) MarkAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	updated, err := h.MarkAllNotificationsRead(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MarkAllResponse{Success: true, Updated: updated})
}

// DeleteNotification removes one of the user's notifications.
// DELETE /api/notifications/{id}
func (h *Handlers) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.RemoveNotification(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
