package handlers

import (
	"context"
	"errors"
	"net/http"

	"apt-detection-app/internal/database"
)

// SettingsRequest is the body of PUT /api/settings.
type SettingsRequest struct {
	EmailNotifications    bool     `json:"email_notifications"`
	PushNotifications     bool     `json:"push_notifications"`
	ThreatSeverityFilter  []string `json:"threat_severity_filter"`
	AutoResolveLowThreats bool     `json:"auto_resolve_low_threats"`
}

// SettingsResponse wraps the user's settings.
type SettingsResponse struct {
	Settings *database.UserSettings `json:"settings"`
}

// GetSettings returns the current user's settings, creating the defaults on
// first access.
// GET /api/settings
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.loadSettings(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{Settings: settings})
}

func (h *Handlers) loadSettings(ctx context.Context, userID string) (*database.UserSettings, error) {
	settings, err := h.db.GetUserSettings(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, &StorageError{Err: err}
	}

	settings, err = h.db.CreateUserSettings(ctx, userID, database.DefaultSettings())
	if errors.Is(err, database.ErrAlreadyExists) {
		// Another request created the row first.
		settings, err = h.db.GetUserSettings(ctx, userID)
	}
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	return settings, nil
}

// UpdateSettings replaces the current user's settings.
// PUT /api/settings
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	filter := req.ThreatSeverityFilter
	if filter == nil {
		filter = []string{}
	}
	for _, s := range filter {
		if !database.Severity(s).Valid() {
			writeError(w, invalid("Invalid severity level"))
			return
		}
	}

	in := database.SettingsUpdate{
		EmailNotifications:    req.EmailNotifications,
		PushNotifications:     req.PushNotifications,
		ThreatSeverityFilter:  filter,
		AutoResolveLowThreats: req.AutoResolveLowThreats,
	}
	uid := userID(r)
	settings, err := h.db.UpdateUserSettings(r.Context(), uid, in)
	if errors.Is(err, database.ErrNotFound) {
		settings, err = h.db.CreateUserSettings(r.Context(), uid, in)
	}
	if err != nil {
		writeError(w, &StorageError{Err: err})
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{Settings: settings})
}
