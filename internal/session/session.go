// Package session serves dashboard websocket sessions. Each session owns a
// state store, keeps it synchronized with the active view and pushes a fresh
// snapshot to the browser after every change.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"apt-detection-app/internal/database"
	"apt-detection-app/internal/feed"
	"apt-detection-app/internal/handlers"
	"apt-detection-app/internal/state"
	"apt-detection-app/internal/viewsync"
)

const writeTimeout = 5 * time.Second

// Session is one connected dashboard. All store mutations happen on the
// goroutine running Run.
type Session struct {
	id      string
	userID  string
	conn    *websocket.Conn
	store   *state.Store
	sync    *viewsync.Synchronizer
	actions handlers.Actions

	active *viewsync.ActiveView
	filter state.ThreatFilter
	sort   string
}

func newSession(conn *websocket.Conn, userID string, loader viewsync.Loader, sub viewsync.Subscriber, actions handlers.Actions) *Session {
	store := state.NewStore()
	return &Session{
		id:      uuid.NewString(),
		userID:  userID,
		conn:    conn,
		store:   store,
		sync:    viewsync.New(loader, sub, store, userID),
		actions: actions,
	}
}

// Run activates initial and serves the session until the client goes away or
// ctx is cancelled. The active view is closed on return.
func (s *Session) Run(ctx context.Context, initial viewsync.View) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.deactivate()

	inbound := make(chan ClientMessage)
	readErr := make(chan error, 1)
	go s.read(ctx, inbound, readErr)

	if err := s.switchView(ctx, initial); err != nil {
		if werr := s.sendError(ctx, MsgView, err); werr != nil {
			return werr
		}
	}

	for {
		var events <-chan feed.ChangeEvent
		if s.active != nil {
			events = s.active.Events()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case msg := <-inbound:
			if err := s.handle(ctx, msg); err != nil {
				return err
			}
		case ev := <-events:
			s.apply(ev)
			s.drain(events)
			if err := s.sendSnapshot(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Session) read(ctx context.Context, inbound chan<- ClientMessage, readErr chan<- error) {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, s.conn, &msg); err != nil {
			readErr <- err
			return
		}
		select {
		case inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// drain applies events that are already waiting so a burst produces one
// snapshot.
func (s *Session) drain(events <-chan feed.ChangeEvent) {
	for {
		select {
		case ev := <-events:
			s.apply(ev)
		default:
			return
		}
	}
}

func (s *Session) apply(ev feed.ChangeEvent) {
	if err := s.sync.Apply(s.active.View(), ev); err != nil {
		slog.Warn("Failed to apply change event",
			"session_id", s.id,
			"collection", ev.Collection,
			"kind", ev.Kind,
			"id", ev.ID,
			"error", err,
		)
	}
}

// handle processes one client message. Only transport failures are returned;
// request failures are reported to the client.
func (s *Session) handle(ctx context.Context, msg ClientMessage) error {
	switch msg.Type {
	case MsgView:
		if err := s.switchView(ctx, msg.View); err != nil {
			return s.sendError(ctx, msg.Type, err)
		}
		return nil
	case MsgFilter:
		if msg.Filter != nil {
			s.filter = *msg.Filter
		} else {
			s.filter = state.ThreatFilter{}
		}
		s.sort = msg.Sort
		return s.sendSnapshot(ctx)
	case MsgAction:
		if err := s.runAction(ctx, msg); err != nil {
			slog.Warn("Session action failed", "session_id", s.id, "action", msg.Action, "id", msg.ID, "error", err)
			return s.sendError(ctx, msg.Action, err)
		}
		return s.sendSnapshot(ctx)
	}
	return s.sendError(ctx, msg.Type, fmt.Errorf("unknown message type %q", msg.Type))
}

// switchView closes the current view before activating the next one. On
// failure the session is left without an active view.
func (s *Session) switchView(ctx context.Context, v viewsync.View) error {
	if !v.Valid() {
		return fmt.Errorf("unknown view %q", v)
	}
	s.deactivate()

	active, err := s.sync.Activate(ctx, v)
	if err != nil {
		return err
	}
	s.active = active
	slog.Debug("Session view switched", "session_id", s.id, "view", v)
	return s.sendSnapshot(ctx)
}

func (s *Session) deactivate() {
	if s.active != nil {
		s.active.Close()
		s.active = nil
	}
}

// runAction executes an operator action and applies its result to the store
// straight away. The change feed later echoes the same write, which the
// store absorbs.
func (s *Session) runAction(ctx context.Context, msg ClientMessage) error {
	switch msg.Action {
	case ActionMarkRead:
		if _, err := s.actions.MarkNotificationRead(ctx, s.userID, msg.ID); err != nil {
			return err
		}
		s.store.MarkNotificationRead(msg.ID)
	case ActionMarkAllRead:
		if _, err := s.actions.MarkAllNotificationsRead(ctx, s.userID); err != nil {
			return err
		}
		s.store.MarkAllNotificationsRead()
	case ActionDeleteNotification:
		if err := s.actions.RemoveNotification(ctx, s.userID, msg.ID); err != nil {
			return err
		}
		s.store.RemoveNotification(msg.ID)
	case ActionUpdateThreatStatus:
		threat, err := s.actions.SetThreatStatus(ctx, msg.ID, database.ThreatStatus(msg.Status))
		if err != nil {
			return err
		}
		return mergeInto(threat, func(raw json.RawMessage) error { return s.store.UpdateThreat(threat.ID, raw) })
	case ActionAddAgent:
		agent, err := s.actions.AddAgent(ctx, msg.AgentName, msg.IPAddress)
		if err != nil {
			return err
		}
		s.store.UpsertAgent(*agent)
	case ActionStartAgent, ActionStopAgent:
		start := s.actions.StartAgent
		if msg.Action == ActionStopAgent {
			start = s.actions.StopAgent
		}
		agent, err := start(ctx, msg.ID)
		if err != nil {
			return err
		}
		return mergeInto(agent, func(raw json.RawMessage) error { return s.store.UpdateAgent(agent.ID, raw) })
	case ActionDeleteAgent:
		if err := s.actions.RemoveAgent(ctx, msg.ID); err != nil {
			return err
		}
		s.store.RemoveAgent(msg.ID)
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil
}

func mergeInto(record any, update func(json.RawMessage) error) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return update(raw)
}

// render builds the snapshot of the active view from the store.
func (s *Session) render() *SnapshotData {
	snap := s.store.Snapshot()

	threats := snap.Threats
	if !s.filter.Empty() {
		threats = state.FilterThreats(threats, s.filter)
	}
	if s.sort == SortSeverity {
		threats = append([]database.Threat(nil), threats...)
		state.SortBySeverity(threats)
	}

	rows := make([]ThreatRow, 0, len(threats))
	for _, t := range threats {
		row := ThreatRow{Threat: t}
		if agent, ok := state.ResolveAgent(snap.Agents, t.AgentID); ok {
			name := agent.AgentName
			row.AgentName = &name
		}
		rows = append(rows, row)
	}

	return &SnapshotData{
		Threats:       rows,
		Agents:        snap.Agents,
		Notifications: snap.Notifications,
		UnreadCount:   snap.UnreadCount,
		Stats:         state.DashboardStats(snap.Threats, snap.Agents),
	}
}

func (s *Session) sendSnapshot(ctx context.Context) error {
	msg := ServerMessage{
		Type:    MsgSnapshot,
		Version: s.store.Version(),
		Data:    s.render(),
	}
	if s.active != nil {
		msg.View = s.active.View()
	}
	return s.write(ctx, msg)
}

func (s *Session) sendError(ctx context.Context, action string, err error) error {
	return s.write(ctx, ServerMessage{Type: MsgError, Action: action, Error: err.Error()})
}

func (s *Session) write(ctx context.Context, msg ServerMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, s.conn, msg); err != nil {
		return fmt.Errorf("failed to write %s: %w", msg.Type, err)
	}
	return nil
}

// closedNormally reports whether err is the client going away.
func closedNormally(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}
