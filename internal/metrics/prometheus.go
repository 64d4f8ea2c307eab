package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus holds the collectors exposed on /metrics. Each instance owns its
// registry so tests can build as many as they need.
type Prometheus struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	feedDropped     *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

// NewPrometheus creates and registers the collectors, plus the Go runtime and
// process collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		feedDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_events_dropped_total",
			Help: "Change events dropped because a subscriber's buffer was full.",
		}, []string{"collection"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domain_events_published_total",
			Help: "Domain events handed to Kafka by type and result.",
		}, []string{"type", "result"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_sessions_active",
			Help: "Open websocket sessions.",
		}),
	}
	p.registry.MustRegister(
		p.httpRequests,
		p.httpDuration,
		p.feedDropped,
		p.eventsPublished,
		p.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (p *Prometheus) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// FeedDropped counts a dropped change event.
func (p *Prometheus) FeedDropped(collection string) {
	p.feedDropped.WithLabelValues(collection).Inc()
}

// EventPublished counts a publish attempt; ok reports whether it succeeded.
func (p *Prometheus) EventPublished(eventType string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	p.eventsPublished.WithLabelValues(eventType, result).Inc()
}

// SessionOpened and SessionClosed move the active session gauge.
func (p *Prometheus) SessionOpened() { p.activeSessions.Inc() }
func (p *Prometheus) SessionClosed() { p.activeSessions.Dec() }
