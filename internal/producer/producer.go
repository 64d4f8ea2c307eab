// Package producer provides a Kafka producer for domain events.
// It handles message encoding, keying, and Kafka-specific configuration.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"apt-detection-app/internal/events"
)

const (
	// writeTimeout is the maximum time to wait for a Kafka write operation.
	writeTimeout = 10 * time.Second
)

// EventPublisher defines the interface for publishing domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event *events.DomainEvent) error
	Close() error
}

// messageWriter is the subset of kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer wraps a Kafka writer. Messages are keyed by the event's aggregate id
// so every event about one row lands on the same partition in order.
type Producer struct {
	writer messageWriter
	topic  string
}

// Ensure Producer implements EventPublisher.
var _ EventPublisher = (*Producer)(nil)

// ParseBrokers splits a comma-separated broker list and trims whitespace.
func ParseBrokers(brokers string) []string {
	if brokers == "" {
		return nil
	}
	list := strings.Split(brokers, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}
	return list
}

// New creates a Kafka producer for the given brokers and topic.
// Writes are synchronous and wait for the leader's ack.
// It tries to create the topic if it doesn't exist.
func New(brokers string, topic string) (*Producer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	brokerList := ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	createTopicIfNotExists(brokerList[0], topic)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	slog.Info("Kafka producer configured",
		"write_timeout", writeTimeout,
		"required_acks", "RequireOne",
		"async", false,
		"partition_key", "aggregate_id",
	)

	return newWithWriter(writer, topic), nil
}

func newWithWriter(w messageWriter, topic string) *Producer {
	return &Producer{writer: w, topic: topic}
}

// Publish encodes the event as protobuf and writes it to Kafka.
func (p *Producer) Publish(ctx context.Context, event *events.DomainEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		slog.Error("Failed to encode domain event",
			"event_id", event.EventID,
			"type", event.Type,
			"error", err,
		)
		return err
	}

	msg := buildKafkaMessage(event, payload)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write message to Kafka",
			"event_id", event.EventID,
			"type", event.Type,
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	slog.Debug("Published domain event",
		"event_id", event.EventID,
		"type", event.Type,
		"aggregate_id", event.AggregateID,
	)
	return nil
}

// Close flushes and closes the Kafka writer.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	slog.Info("Kafka producer closed successfully")
	return nil
}
