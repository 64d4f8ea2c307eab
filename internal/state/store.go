// Package state holds the in-memory view state of one dashboard session:
// threats, agents, notifications and the unread notification count.
//
// A Store is owned by a single goroutine and is not safe for concurrent use.
package state

import (
	"encoding/json"
	"fmt"

	"apt-detection-app/internal/database"
)

// Store is the client-side cache of the collections a session displays.
// Threats and notifications are kept most-recent-first.
type Store struct {
	threats       []database.Threat
	agents        []database.Agent
	notifications []database.Notification
	unreadCount   int
	version       uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Version increments on every mutation.
func (s *Store) Version() uint64 { return s.version }

// UnreadCount returns the number of unread notifications tracked by the store.
func (s *Store) UnreadCount() int { return s.unreadCount }

// Threats returns a copy of the threat list.
func (s *Store) Threats() []database.Threat { return append([]database.Threat(nil), s.threats...) }

// Agents returns a copy of the agent list.
func (s *Store) Agents() []database.Agent { return append([]database.Agent(nil), s.agents...) }

// Notifications returns a copy of the notification list.
func (s *Store) Notifications() []database.Notification {
	return append([]database.Notification(nil), s.notifications...)
}

func (s *Store) touch() { s.version++ }

// SetThreats replaces the threat list.
func (s *Store) SetThreats(threats []database.Threat) {
	s.threats = append([]database.Threat(nil), threats...)
	s.touch()
}

// SetAgents replaces the agent list.
func (s *Store) SetAgents(agents []database.Agent) {
	s.agents = append([]database.Agent(nil), agents...)
	s.touch()
}

// SetNotifications replaces the notification list and recomputes the unread count.
func (s *Store) SetNotifications(notifications []database.Notification) {
	s.notifications = append([]database.Notification(nil), notifications...)
	s.unreadCount = 0
	for _, n := range s.notifications {
		if !n.IsRead {
			s.unreadCount++
		}
	}
	s.touch()
}

// AddThreat prepends t.
func (s *Store) AddThreat(t database.Threat) {
	s.threats = append([]database.Threat{t}, s.threats...)
	s.touch()
}

// UpdateThreat merges the fields present in patch into the threat with the
// given id. It is a no-op when no such threat is held. A patch that does not
// decode leaves the store unchanged.
func (s *Store) UpdateThreat(id string, patch json.RawMessage) error {
	i := indexOf(s.threats, id, func(t database.Threat) string { return t.ID })
	if i < 0 {
		return nil
	}
	merged, err := merge(s.threats[i], patch)
	if err != nil {
		return fmt.Errorf("failed to patch threat %s: %w", id, err)
	}
	merged.ID = id
	s.threats[i] = merged
	s.touch()
	return nil
}

// AddNotification prepends n and counts it as unread.
func (s *Store) AddNotification(n database.Notification) {
	s.notifications = append([]database.Notification{n}, s.notifications...)
	s.unreadCount++
	s.touch()
}

// MarkNotificationRead flags the notification as read. The unread count only
// drops when the notification was held and unread, so repeating the call has
// no further effect.
func (s *Store) MarkNotificationRead(id string) {
	i := indexOf(s.notifications, id, func(n database.Notification) string { return n.ID })
	if i < 0 || s.notifications[i].IsRead {
		return
	}
	s.notifications[i].IsRead = true
	if s.unreadCount > 0 {
		s.unreadCount--
	}
	s.touch()
}

// MarkAllNotificationsRead flags every held notification as read.
func (s *Store) MarkAllNotificationsRead() {
	for i := range s.notifications {
		s.notifications[i].IsRead = true
	}
	s.unreadCount = 0
	s.touch()
}

// UpsertThreat removes any threat with t's id and prepends t.
func (s *Store) UpsertThreat(t database.Threat) {
	s.threats = moveToFront(s.threats, t, func(x database.Threat) string { return x.ID })
	s.touch()
}

// UpsertAgent removes any agent with a's id and prepends a.
func (s *Store) UpsertAgent(a database.Agent) {
	s.agents = moveToFront(s.agents, a, func(x database.Agent) string { return x.ID })
	s.touch()
}

// UpsertNotification removes any notification with n's id and prepends n,
// keeping the unread count consistent with the read flags.
func (s *Store) UpsertNotification(n database.Notification) {
	if i := indexOf(s.notifications, n.ID, func(x database.Notification) string { return x.ID }); i >= 0 {
		if !s.notifications[i].IsRead && s.unreadCount > 0 {
			s.unreadCount--
		}
	}
	s.notifications = moveToFront(s.notifications, n, func(x database.Notification) string { return x.ID })
	if !n.IsRead {
		s.unreadCount++
	}
	s.touch()
}

// UpdateAgent merges patch into the agent with the given id; no-op if absent.
func (s *Store) UpdateAgent(id string, patch json.RawMessage) error {
	i := indexOf(s.agents, id, func(a database.Agent) string { return a.ID })
	if i < 0 {
		return nil
	}
	merged, err := merge(s.agents[i], patch)
	if err != nil {
		return fmt.Errorf("failed to patch agent %s: %w", id, err)
	}
	merged.ID = id
	s.agents[i] = merged
	s.touch()
	return nil
}

// UpdateNotification merges patch into the notification with the given id;
// no-op if absent. The unread count follows a change of the read flag.
func (s *Store) UpdateNotification(id string, patch json.RawMessage) error {
	i := indexOf(s.notifications, id, func(n database.Notification) string { return n.ID })
	if i < 0 {
		return nil
	}
	merged, err := merge(s.notifications[i], patch)
	if err != nil {
		return fmt.Errorf("failed to patch notification %s: %w", id, err)
	}
	merged.ID = id
	wasRead := s.notifications[i].IsRead
	s.notifications[i] = merged
	switch {
	case wasRead && !merged.IsRead:
		s.unreadCount++
	case !wasRead && merged.IsRead && s.unreadCount > 0:
		s.unreadCount--
	}
	s.touch()
	return nil
}

// RemoveThreat drops the threat with the given id.
func (s *Store) RemoveThreat(id string) {
	if i := indexOf(s.threats, id, func(t database.Threat) string { return t.ID }); i >= 0 {
		s.threats = append(s.threats[:i:i], s.threats[i+1:]...)
		s.touch()
	}
}

// RemoveAgent drops the agent with the given id.
func (s *Store) RemoveAgent(id string) {
	if i := indexOf(s.agents, id, func(a database.Agent) string { return a.ID }); i >= 0 {
		s.agents = append(s.agents[:i:i], s.agents[i+1:]...)
		s.touch()
	}
}

// RemoveNotification drops the notification with the given id.
func (s *Store) RemoveNotification(id string) {
	i := indexOf(s.notifications, id, func(n database.Notification) string { return n.ID })
	if i < 0 {
		return
	}
	if !s.notifications[i].IsRead && s.unreadCount > 0 {
		s.unreadCount--
	}
	s.notifications = append(s.notifications[:i:i], s.notifications[i+1:]...)
	s.touch()
}

// TrimThreats keeps at most n threats.
func (s *Store) TrimThreats(n int) {
	if n >= 0 && len(s.threats) > n {
		s.threats = s.threats[:n:n]
		s.touch()
	}
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Threats       []database.Threat       `json:"threats"`
	Agents        []database.Agent        `json:"agents"`
	Notifications []database.Notification `json:"notifications"`
	UnreadCount   int                     `json:"unread_count"`
	Version       uint64                  `json:"version"`
}

// Snapshot copies the store's current contents.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Threats:       nonNil(s.Threats()),
		Agents:        nonNil(s.Agents()),
		Notifications: nonNil(s.Notifications()),
		UnreadCount:   s.unreadCount,
		Version:       s.version,
	}
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func indexOf[T any](items []T, id string, key func(T) string) int {
	for i, item := range items {
		if key(item) == id {
			return i
		}
	}
	return -1
}

func moveToFront[T any](items []T, item T, key func(T) string) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	id := key(item)
	for _, existing := range items {
		if key(existing) != id {
			out = append(out, existing)
		}
	}
	return out
}

// merge overlays the JSON object patch onto base. Fields absent from patch keep
// their value; fields present as null are cleared.
func merge[T any](base T, patch json.RawMessage) (T, error) {
	var zero T
	var over map[string]json.RawMessage
	if err := json.Unmarshal(patch, &over); err != nil {
		return zero, fmt.Errorf("patch is not a JSON object: %w", err)
	}

	raw, err := json.Marshal(base)
	if err != nil {
		return zero, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return zero, err
	}
	for k, v := range over {
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return zero, err
	}
	return out, nil
}
