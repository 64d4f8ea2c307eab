// Package viewsync seeds a session's state store from bulk queries and keeps it
// reconciled with the change feed while a view is active.
package viewsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"apt-detection-app/internal/database"
	"apt-detection-app/internal/feed"
	"apt-detection-app/internal/state"
)

// View names a dashboard page.
type View string

const (
	ViewDashboard     View = "dashboard"
	ViewThreats       View = "threats"
	ViewControl       View = "control"
	ViewNotifications View = "notifications"
)

// DashboardThreatLimit is how many recent threats the dashboard shows.
const DashboardThreatLimit = 10

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	switch v {
	case ViewDashboard, ViewThreats, ViewControl, ViewNotifications:
		return true
	}
	return false
}

// Loader runs the bulk queries used to seed a view.
type Loader interface {
	ListThreats(ctx context.Context, q database.Query) ([]*database.Threat, error)
	ListAgents(ctx context.Context, q database.Query) ([]*database.Agent, error)
	ListNotifications(ctx context.Context, q database.Query) ([]*database.Notification, error)
}

// Subscriber opens change-feed subscriptions.
type Subscriber interface {
	Subscribe(collection string, mask feed.Mask) (*feed.Subscription, error)
}

// Synchronizer binds one session's store to the database and change feed.
type Synchronizer struct {
	loader Loader
	feed   Subscriber
	store  *state.Store
	userID string
}

// New creates a synchronizer for the given store. userID scopes notifications.
func New(loader Loader, sub Subscriber, store *state.Store, userID string) *Synchronizer {
	return &Synchronizer{
		loader: loader,
		feed:   sub,
		store:  store,
		userID: userID,
	}
}

// Store returns the store the synchronizer writes to.
func (s *Synchronizer) Store() *state.Store { return s.store }

type collectionSpec struct {
	collection string
	mask       feed.Mask
}

func (s *Synchronizer) collections(v View) []collectionSpec {
	switch v {
	case ViewDashboard:
		return []collectionSpec{
			{database.TableThreats, feed.MaskAll},
			{database.TableAgents, feed.MaskAll},
		}
	case ViewThreats:
		return []collectionSpec{{database.TableThreats, feed.MaskAll}}
	case ViewControl:
		return []collectionSpec{{database.TableAgents, feed.MaskAll}}
	case ViewNotifications:
		return []collectionSpec{{database.TableNotifications, feed.MaskAll}}
	}
	return nil
}

// Activate subscribes to the view's collections, then seeds the store with one
// bulk query per collection and clears the collections the view does not own.
// Subscribing first means a change committed while the queries run is
// buffered and reconciled afterwards instead of lost.
//
// The returned handle must be closed by the caller; on error every
// subscription opened so far has already been released and the store is
// unchanged.
func (s *Synchronizer) Activate(ctx context.Context, v View) (*ActiveView, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("unknown view %q", v)
	}

	active := &ActiveView{
		view:   v,
		events: make(chan feed.ChangeEvent),
		done:   make(chan struct{}),
	}
	for _, spec := range s.collections(v) {
		sub, err := s.feed.Subscribe(spec.collection, spec.mask)
		if err != nil {
			active.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", spec.collection, err)
		}
		active.subs = append(active.subs, sub)
	}

	if err := s.seed(ctx, v); err != nil {
		active.Close()
		return nil, err
	}

	for _, sub := range active.subs {
		active.wg.Add(1)
		go active.forward(sub)
	}

	slog.Debug("View activated", "view", v, "subscriptions", len(active.subs))
	return active, nil
}

func (s *Synchronizer) seed(ctx context.Context, v View) error {
	var (
		threats       []*database.Threat
		agents        []*database.Agent
		notifications []*database.Notification
		err           error
	)

	switch v {
	case ViewDashboard:
		threats, err = s.loader.ListThreats(ctx, database.Query{OrderBy: "detected_at", Limit: DashboardThreatLimit})
		if err != nil {
			return fmt.Errorf("failed to load threats: %w", err)
		}
		agents, err = s.loader.ListAgents(ctx, database.Query{OrderBy: "created_at"})
		if err != nil {
			return fmt.Errorf("failed to load agents: %w", err)
		}
	case ViewThreats:
		threats, err = s.loader.ListThreats(ctx, database.Query{OrderBy: "detected_at"})
		if err != nil {
			return fmt.Errorf("failed to load threats: %w", err)
		}
	case ViewControl:
		agents, err = s.loader.ListAgents(ctx, database.Query{OrderBy: "created_at"})
		if err != nil {
			return fmt.Errorf("failed to load agents: %w", err)
		}
	case ViewNotifications:
		notifications, err = s.loader.ListNotifications(ctx, database.Query{OrderBy: "created_at"}.Where("user_id", s.userID))
		if err != nil {
			return fmt.Errorf("failed to load notifications: %w", err)
		}
	}

	// Replace every collection once all queries succeeded. Collections the view
	// does not load end up empty since nothing keeps them current.
	s.store.SetThreats(deref(threats))
	s.store.SetAgents(deref(agents))
	s.store.SetNotifications(deref(notifications))
	return nil
}

// Apply reconciles one change event into the store: inserts are upserted to the
// front, updates are merged by id and deletes remove by id. Notifications for
// other users are ignored.
func (s *Synchronizer) Apply(v View, ev feed.ChangeEvent) error {
	switch ev.Collection {
	case database.TableThreats:
		if err := s.applyThreat(ev); err != nil {
			return err
		}
		if v == ViewDashboard {
			s.store.TrimThreats(DashboardThreatLimit)
		}
		return nil
	case database.TableAgents:
		return s.applyAgent(ev)
	case database.TableNotifications:
		return s.applyNotification(ev)
	}
	return fmt.Errorf("unexpected change for collection %q", ev.Collection)
}

func (s *Synchronizer) applyThreat(ev feed.ChangeEvent) error {
	switch ev.Kind {
	case feed.Inserted:
		var t database.Threat
		if err := ev.Decode(&t); err != nil {
			return fmt.Errorf("failed to decode threat: %w", err)
		}
		s.store.UpsertThreat(t)
	case feed.Updated:
		return s.store.UpdateThreat(ev.ID, ev.Record)
	case feed.Deleted:
		s.store.RemoveThreat(ev.ID)
	}
	return nil
}

func (s *Synchronizer) applyAgent(ev feed.ChangeEvent) error {
	switch ev.Kind {
	case feed.Inserted:
		var a database.Agent
		if err := ev.Decode(&a); err != nil {
			return fmt.Errorf("failed to decode agent: %w", err)
		}
		s.store.UpsertAgent(a)
	case feed.Updated:
		return s.store.UpdateAgent(ev.ID, ev.Record)
	case feed.Deleted:
		s.store.RemoveAgent(ev.ID)
	}
	return nil
}

func (s *Synchronizer) applyNotification(ev feed.ChangeEvent) error {
	if ev.Kind == feed.Deleted {
		s.store.RemoveNotification(ev.ID)
		return nil
	}

	var n database.Notification
	if err := ev.Decode(&n); err != nil {
		return fmt.Errorf("failed to decode notification: %w", err)
	}
	if n.UserID != s.userID {
		return nil
	}
	if ev.Kind == feed.Inserted {
		s.store.UpsertNotification(n)
		return nil
	}
	return s.store.UpdateNotification(ev.ID, ev.Record)
}

// ActiveView is the scoped lifetime of one activated view. Events delivers the
// merged change events of all its subscriptions.
type ActiveView struct {
	view   View
	subs   []*feed.Subscription
	events chan feed.ChangeEvent
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// View returns the activated view.
func (a *ActiveView) View() View { return a.view }

// Events returns the merged change events. It is never closed; use Done to
// observe the end of the view.
func (a *ActiveView) Events() <-chan feed.ChangeEvent { return a.events }

// Done is closed once the view has been closed.
func (a *ActiveView) Done() <-chan struct{} { return a.done }

func (a *ActiveView) forward(sub *feed.Subscription) {
	defer a.wg.Done()
	for {
		select {
		case <-a.done:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			select {
			case a.events <- ev:
			case <-a.done:
				return
			}
		}
	}
}

// Close releases every subscription of the view. Safe to call more than once.
func (a *ActiveView) Close() {
	a.once.Do(func() {
		close(a.done)
		for _, sub := range a.subs {
			sub.Close()
		}
		a.wg.Wait()
		slog.Debug("View closed", "view", a.view)
	})
}

func deref[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, p := range in {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
