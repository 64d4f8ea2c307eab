package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoMetrics is returned when a service has never reported or its key expired.
var ErrNoMetrics = errors.New("no metrics found")

// Reader reads service metrics from Redis.
type Reader struct {
	redis *redis.Client
}

// NewReader creates a metrics reader.
func NewReader(redisClient *redis.Client) *Reader {
	return &Reader{redis: redisClient}
}

// GetServiceMetrics retrieves metrics for one service.
func (r *Reader) GetServiceMetrics(ctx context.Context, serviceName string) (*ServiceMetrics, error) {
	data, err := r.redis.Get(ctx, MetricsKeyPrefix+serviceName).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w for service: %s", ErrNoMetrics, serviceName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}
	return decodeServiceMetrics(data, time.Now())
}

// GetAllServiceMetrics retrieves metrics for every service that has reported.
func (r *Reader) GetAllServiceMetrics(ctx context.Context) (map[string]*ServiceMetrics, error) {
	keys, err := r.redis.Keys(ctx, MetricsKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics keys: %w", err)
	}

	result := make(map[string]*ServiceMetrics, len(keys))
	for _, key := range keys {
		name := key[len(MetricsKeyPrefix):]
		m, err := r.GetServiceMetrics(ctx, name)
		if err != nil {
			slog.Warn("Failed to read metrics for service", "service", name, "error", err)
			continue
		}
		result[name] = m
	}
	return result, nil
}

// decodeServiceMetrics parses a stored snapshot and marks it unhealthy once it
// is older than MetricsTTL.
func decodeServiceMetrics(data []byte, now time.Time) (*ServiceMetrics, error) {
	var m ServiceMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if now.Sub(m.LastUpdated) > MetricsTTL {
		m.Status = "unhealthy"
	}
	return &m, nil
}

// Offline returns the placeholder reported for a service with no metrics.
func Offline(serviceName string) *ServiceMetrics {
	return &ServiceMetrics{ServiceName: serviceName, Status: "offline"}
}
