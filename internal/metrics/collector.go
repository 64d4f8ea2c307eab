// Package metrics collects service metrics. Snapshots are written to Redis for
// the service-metrics endpoint, and Prometheus collectors back /metrics.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKeyPrefix is the Redis key prefix for service metrics.
	MetricsKeyPrefix = "metrics:"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// ServiceMetrics is the snapshot stored in Redis for one service.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"` // "healthy", "unhealthy" or "offline"

	// Counters since start
	RequestsReceived  uint64 `json:"requests_received"`
	RequestsHandled   uint64 `json:"requests_handled"`
	RequestErrors     uint64 `json:"request_errors"`
	EventsPublished   uint64 `json:"events_published"`
	PublishErrors     uint64 `json:"publish_errors"`
	FeedEventsDropped uint64 `json:"feed_events_dropped"`

	ActiveSessions int64 `json:"active_sessions"`

	RequestsPerSecond float64 `json:"requests_per_second"`
	AvgLatencyNs      float64 `json:"avg_latency_ns"`

	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Collector accumulates counters and periodically writes them to Redis.
// A nil Redis client disables the writes; counters still accumulate.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	requestsReceived  atomic.Uint64
	requestsHandled   atomic.Uint64
	requestErrors     atomic.Uint64
	eventsPublished   atomic.Uint64
	publishErrors     atomic.Uint64
	feedEventsDropped atomic.Uint64
	activeSessions    atomic.Int64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	// rate state, only touched by the reporting goroutine
	lastReportTime   time.Time
	lastHandledCount uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a collector for a service.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	now := time.Now().UTC()
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      now,
		reportInterval: DefaultReportInterval,
		lastReportTime: now,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins the periodic reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background())
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background())
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the reporting goroutine after a final write.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordRequest counts an incoming HTTP request.
func (c *Collector) RecordRequest() { c.requestsReceived.Add(1) }

// RecordHandled counts a successfully handled request with its latency.
func (c *Collector) RecordHandled(latency time.Duration) {
	c.requestsHandled.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// RecordError counts a request that ended with a 4xx or 5xx.
func (c *Collector) RecordError() { c.requestErrors.Add(1) }

// RecordPublished counts a domain event written to Kafka.
func (c *Collector) RecordPublished() { c.eventsPublished.Add(1) }

// RecordPublishError counts a domain event that could not be written.
func (c *Collector) RecordPublishError() { c.publishErrors.Add(1) }

// RecordFeedDrop counts a change event dropped for a slow subscriber.
func (c *Collector) RecordFeedDrop(collection string) {
	c.feedEventsDropped.Add(1)
	c.IncrementCustom("feed_drop_" + collection)
}

// SessionOpened and SessionClosed track live websocket sessions.
func (c *Collector) SessionOpened() { c.activeSessions.Add(1) }
func (c *Collector) SessionClosed() { c.activeSessions.Add(-1) }

// IncrementCustom increments a named counter.
func (c *Collector) IncrementCustom(name string) {
	c.AddCustom(name, 1)
}

// AddCustom adds a value to a named counter.
func (c *Collector) AddCustom(name string, value uint64) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(value)
}

// GetSnapshot returns the current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *ServiceMetrics {
	now := time.Now().UTC()
	handled := c.requestsHandled.Load()

	var rate float64
	if elapsed := now.Sub(c.lastReportTime).Seconds(); elapsed > 0 {
		rate = float64(handled-c.lastHandledCount) / elapsed
	}

	var avgLatencyNs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(n)
	}

	c.customMu.RLock()
	custom := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		custom[name] = counter.Load()
	}
	c.customMu.RUnlock()

	return &ServiceMetrics{
		ServiceName:       c.serviceName,
		StartedAt:         c.startedAt,
		LastUpdated:       now,
		Status:            "healthy",
		RequestsReceived:  c.requestsReceived.Load(),
		RequestsHandled:   handled,
		RequestErrors:     c.requestErrors.Load(),
		EventsPublished:   c.eventsPublished.Load(),
		PublishErrors:     c.publishErrors.Load(),
		FeedEventsDropped: c.feedEventsDropped.Load(),
		ActiveSessions:    c.activeSessions.Load(),
		RequestsPerSecond: rate,
		AvgLatencyNs:      avgLatencyNs,
		CustomCounters:    custom,
	}
}

func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snap := c.GetSnapshot()
	c.lastReportTime = snap.LastUpdated
	c.lastHandledCount = snap.RequestsHandled

	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := MetricsKeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}
	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}
