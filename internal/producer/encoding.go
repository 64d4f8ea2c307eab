package producer

import (
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"

	"apt-detection-app/internal/events"
)

// ContentType is the content-type header value of every message.
const ContentType = "application/x-protobuf"

// encodeEvent serializes an event to protobuf bytes.
func encodeEvent(event *events.DomainEvent) ([]byte, error) {
	pb, err := event.ToProto()
	if err != nil {
		return nil, err
	}
	payload, err := proto.Marshal(pb)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

// buildKafkaMessage creates a Kafka message keyed by the aggregate id.
func buildKafkaMessage(event *events.DomainEvent, payload []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(ContentType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(event.SchemaVersion))},
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
		Time: event.OccurredAt,
	}
}
