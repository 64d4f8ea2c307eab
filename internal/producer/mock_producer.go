package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"apt-detection-app/internal/events"
)

// MockProducer logs events instead of publishing them to Kafka.
// Useful for running the dashboard without a Kafka instance.
type MockProducer struct {
	topic string
}

// Ensure MockProducer implements EventPublisher.
var _ EventPublisher = (*MockProducer)(nil)

// NewMock creates a producer that only logs.
func NewMock(topic string) *MockProducer {
	slog.Info("Using mock producer (no Kafka connection)", "topic", topic)
	return &MockProducer{topic: topic}
}

// Publish logs the event as JSON.
func (p *MockProducer) Publish(ctx context.Context, event *events.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	slog.Info("Mock publish (event logged, not sent to Kafka)",
		"topic", p.topic,
		"type", event.Type,
		"aggregate_id", event.AggregateID,
		"event_json", string(payload),
	)
	return nil
}

// Close is a no-op.
func (p *MockProducer) Close() error {
	slog.Info("Mock producer closed", "topic", p.topic)
	return nil
}
