package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/seawatch/threat-monitor/backend/internal/models"
)

// Kafka publishes committed records to a topic, keyed by primary id so
// records for the same id land on the same partition.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka builds a Kafka notifier for the given brokers and topic.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:     brokers,
			Topic:       topic,
			MaxAttempts: 3,
		}),
	}
}

// Name identifies the sink in logs.
func (k *Kafka) Name() string { return "kafka" }

// Notify writes the record as a JSON message.
func (k *Kafka) Notify(ctx context.Context, rec models.ThreatRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(rec.ID, 10)),
		Value: payload,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write record to topic: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
