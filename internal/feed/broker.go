package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"apt-detection-app/internal/database"
)

const (
	// DefaultBufferSize is the per-subscription event buffer.
	DefaultBufferSize = 256

	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
	fetchTimeout         = 5 * time.Second
)

// ErrClosed is returned by Subscribe after the broker has been closed.
var ErrClosed = errors.New("feed broker closed")

// Source delivers raw Postgres notifications. *pq.Listener satisfies it.
type Source interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// RecordFetcher re-reads a row by id. *database.DB satisfies it.
type RecordFetcher interface {
	FetchRecord(ctx context.Context, table, id string) (json.RawMessage, error)
}

// Broker reads row-change notifications from a Source and fans them out to
// subscriptions. Delivery never blocks the broker: an event for a full
// subscription buffer is dropped.
type Broker struct {
	source     Source
	bufferSize int
	onDrop     func(collection string)
	fetcher    RecordFetcher

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithBufferSize sets the per-subscription buffer size.
func WithBufferSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithDropHandler registers a callback invoked for every dropped event.
func WithDropHandler(fn func(collection string)) Option {
	return func(b *Broker) {
		if fn != nil {
			b.onDrop = fn
		}
	}
}

// WithRecordFetcher sets where the broker re-reads rows whose notification
// came without a record.
func WithRecordFetcher(f RecordFetcher) Option {
	return func(b *Broker) {
		b.fetcher = f
	}
}

// New creates a broker over src. Call Run to start dispatching.
func New(src Source, opts ...Option) *Broker {
	b := &Broker{
		source:     src,
		bufferSize: DefaultBufferSize,
		onDrop:     func(string) {},
		subs:       make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Listen opens a pq.Listener on dsn subscribed to channel.
func Listen(dsn, channel string) (*pq.Listener, error) {
	listener := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			slog.Info("Change feed listener connected", "channel", channel)
		case pq.ListenerEventDisconnected:
			slog.Warn("Change feed listener disconnected", "channel", channel, "error", err)
		case pq.ListenerEventReconnected:
			slog.Info("Change feed listener reconnected", "channel", channel)
		case pq.ListenerEventConnectionAttemptFailed:
			slog.Error("Change feed listener connection attempt failed", "channel", channel, "error", err)
		}
	})
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}
	return listener, nil
}

// Run dispatches notifications until ctx is cancelled or the source closes.
func (b *Broker) Run(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	notifications := b.source.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go func() {
				if err := b.source.Ping(); err != nil {
					slog.Warn("Change feed ping failed", "error", err)
				}
			}()
		case n, ok := <-notifications:
			if !ok {
				slog.Info("Change feed source closed")
				return
			}
			if n == nil {
				// The listener re-established its connection; changes committed
				// while it was down are not replayed.
				slog.Warn("Change feed connection re-established, events may have been missed")
				continue
			}
			ev, err := parseEvent(n.Extra)
			if err != nil {
				slog.Error("Failed to parse change notification", "error", err, "channel", n.Channel)
				continue
			}
			if ev.Kind != Deleted && len(ev.Record) == 0 {
				if ev, ok = b.complete(ctx, ev); !ok {
					continue
				}
			}
			b.Dispatch(ev)
		}
	}
}

// complete fills in the record of an insert or update whose notification
// omitted it. It reports false when the event should be skipped.
func (b *Broker) complete(ctx context.Context, ev ChangeEvent) (ChangeEvent, bool) {
	if b.fetcher == nil {
		slog.Warn("Dropping change event without record", "collection", ev.Collection, "op", ev.Kind, "id", ev.ID)
		return ev, false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	record, err := b.fetcher.FetchRecord(fetchCtx, ev.Collection, ev.ID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		// Deleted since; its DELETE event follows.
		slog.Debug("Changed row no longer exists", "collection", ev.Collection, "id", ev.ID)
		return ev, false
	case err != nil:
		slog.Error("Failed to re-read changed row", "collection", ev.Collection, "id", ev.ID, "error", err)
		return ev, false
	}
	ev.Record = record
	return ev, true
}

// Dispatch delivers ev to every open subscription whose collection and mask match.
func (b *Broker) Dispatch(ev ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		if sub.collection != ev.Collection || !sub.mask.Has(ev.Kind) {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			slog.Warn("Dropping change event for slow subscriber",
				"collection", ev.Collection,
				"op", ev.Kind,
				"id", ev.ID,
			)
			b.onDrop(ev.Collection)
		}
	}
}

// Subscribe opens a subscription for changes to collection admitted by mask.
// The caller must Close it.
func (b *Broker) Subscribe(collection string, mask Mask) (*Subscription, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection cannot be empty")
	}
	if mask&MaskAll == 0 {
		return nil, fmt.Errorf("event mask cannot be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	sub := &Subscription{
		collection: collection,
		mask:       mask,
		events:     make(chan ChangeEvent, b.bufferSize),
		broker:     b,
	}
	b.subs[sub] = struct{}{}
	slog.Debug("Opened change subscription", "collection", collection, "open", len(b.subs))
	return sub, nil
}

// Open returns the number of open subscriptions.
func (b *Broker) Open() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.events)
}

// Close closes every open subscription and the underlying source.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.events)
	}
	b.mu.Unlock()

	slog.Info("Closing change feed")
	if b.source == nil {
		return nil
	}
	return b.source.Close()
}

// Subscription receives change events for one collection.
type Subscription struct {
	collection string
	mask       Mask
	events     chan ChangeEvent
	broker     *Broker
}

// Collection returns the collection this subscription watches.
func (s *Subscription) Collection() string { return s.collection }

// Events returns the event channel. It is closed when the subscription or the
// broker is closed.
func (s *Subscription) Events() <-chan ChangeEvent { return s.events }

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.broker.remove(s)
}
