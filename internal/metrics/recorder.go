package metrics

import "time"

// Recorder fans each observation out to the Redis collector and the
// Prometheus collectors. Either side may be nil.
type Recorder struct {
	collector *Collector
	prom      *Prometheus
}

// NewRecorder combines a collector and Prometheus collectors.
func NewRecorder(c *Collector, p *Prometheus) *Recorder {
	return &Recorder{collector: c, prom: p}
}

// Collector returns the Redis-backed collector, or nil.
func (r *Recorder) Collector() *Collector { return r.collector }

// Prometheus returns the Prometheus collectors, or nil.
func (r *Recorder) Prometheus() *Prometheus { return r.prom }

// ObserveRequest records a finished HTTP request. Responses with a status of
// 400 or above count as errors.
func (r *Recorder) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if r.collector != nil {
		r.collector.RecordRequest()
		if code >= 400 {
			r.collector.RecordError()
		} else {
			r.collector.RecordHandled(elapsed)
		}
		r.collector.IncrementCustom("http_" + method)
	}
	if r.prom != nil {
		r.prom.ObserveRequest(method, route, code, elapsed)
	}
}

// EventPublished records a domain event publish attempt.
func (r *Recorder) EventPublished(eventType string, ok bool) {
	if r.collector != nil {
		if ok {
			r.collector.RecordPublished()
			r.collector.IncrementCustom("kafka_" + eventType)
		} else {
			r.collector.RecordPublishError()
		}
	}
	if r.prom != nil {
		r.prom.EventPublished(eventType, ok)
	}
}

// FeedDropped records a change event dropped for a slow subscriber.
func (r *Recorder) FeedDropped(collection string) {
	if r.collector != nil {
		r.collector.RecordFeedDrop(collection)
	}
	if r.prom != nil {
		r.prom.FeedDropped(collection)
	}
}

// IncrementCustom increments a named counter on the collector.
func (r *Recorder) IncrementCustom(name string) {
	if r.collector != nil {
		r.collector.IncrementCustom(name)
	}
}

func (r *Recorder) SessionOpened() {
	if r.collector != nil {
		r.collector.SessionOpened()
	}
	if r.prom != nil {
		r.prom.SessionOpened()
	}
}

func (r *Recorder) SessionClosed() {
	if r.collector != nil {
		r.collector.SessionClosed()
	}
	if r.prom != nil {
		r.prom.SessionClosed()
	}
}
