package producer

import (
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicPartitions  = 3
	topicReadyChecks = 5
)

// createTopicIfNotExists creates the topic when it is missing. Failures are
// logged and never prevent producer creation.
func createTopicIfNotExists(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		slog.Warn("Could not connect to Kafka to check/create topic",
			"broker", broker,
			"topic", topic,
			"error", err,
		)
		return
	}
	defer conn.Close()

	if partitions, err := conn.ReadPartitions(topic); err == nil && len(partitions) > 0 {
		slog.Info("Topic already exists", "topic", topic, "partitions", len(partitions))
		return
	}

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     topicPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		slog.Warn("Could not create topic (may need to be created manually)",
			"topic", topic,
			"error", err,
		)
		return
	}
	slog.Info("Created topic", "topic", topic, "partitions", topicPartitions)

	// Topic creation is asynchronous on the broker side.
	for i := 0; i < topicReadyChecks; i++ {
		time.Sleep(time.Second)
		if partitions, err := conn.ReadPartitions(topic); err == nil && len(partitions) > 0 {
			slog.Info("Topic is now available", "topic", topic, "partitions", len(partitions))
			return
		}
	}
	slog.Warn("Topic created but may not be fully available yet", "topic", topic)
}
