package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"veritas/internal/platform/kafka/consumer"
	"veritas/internal/platform/kafka/producer"
	"veritas/internal/scan/models"
)

const (
	headerEventType = "event_type"
	eventScanRecord = "scan_record_inserted"
)

// Producer is the part of the Kafka producer the feed needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaFeed carries inserted records between instances. Publish writes to
// the topic keyed by owner; Handle relays consumed records into the local
// hub. Every instance, including the writer, learns about a record only
// through the topic, so a record reaches each subscriber once.
type KafkaFeed struct {
	producer Producer
	topic    string
	hub      *Hub
	logger   *slog.Logger
}

// NewKafkaFeed wires a producer and a hub to a topic.
func NewKafkaFeed(p Producer, topic string, hub *Hub, logger *slog.Logger) *KafkaFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaFeed{producer: p, topic: topic, hub: hub, logger: logger}
}

// Publish produces the record to the feed topic.
func (f *KafkaFeed) Publish(ctx context.Context, record *models.ScanRecord) error {
	if record == nil || record.UserID.IsNil() {
		return fmt.Errorf("record with owner required")
	}
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode scan record: %w", err)
	}
	return f.producer.Produce(ctx, &producer.Message{
		Topic:   f.topic,
		Key:     []byte(record.UserID.String()),
		Value:   value,
		Headers: map[string]string{headerEventType: eventScanRecord},
	})
}

// Handle decodes a consumed record and fans it out locally. Messages of
// other event types are skipped; undecodable ones are logged and skipped so
// one bad message cannot stall the partition.
func (f *KafkaFeed) Handle(ctx context.Context, msg *consumer.Message) error {
	if t, ok := msg.Headers[headerEventType]; ok && t != eventScanRecord {
		return nil
	}
	var record models.ScanRecord
	if err := json.Unmarshal(msg.Value, &record); err != nil {
		f.logger.WarnContext(ctx, "skipping undecodable scan record",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if err := f.hub.deliver(ctx, &record, "kafka"); err != nil {
		f.logger.WarnContext(ctx, "failed to relay scan record", "scan_id", record.ID.String(), "error", err)
	}
	return nil
}

var _ consumer.Handler = (*KafkaFeed)(nil)
