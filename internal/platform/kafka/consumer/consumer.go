// Package consumer reads the scan-record topic and hands each record to a
// Handler.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"veritas/internal/platform/kafka"
)

// ErrStopped is returned by Run on a consumer that already ran.
var ErrStopped = errors.New("kafka consumer stopped")

// Message is a received record with its headers flattened.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes consumed messages. In group mode a returned error leaves
// the offset uncommitted.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Config holds consumer configuration. Without a GroupID every instance
// reads all partitions on its own and no offsets are committed.
type Config struct {
	Brokers     []string
	GroupID     string
	Topics      []string
	StartAtHead bool
}

// FromPlatform builds a consumer config for the shared topic.
func FromPlatform(cfg kafka.Config) Config {
	return Config{
		Brokers: cfg.BrokerList(),
		GroupID: cfg.GroupID,
		Topics:  []string{cfg.Topic},
	}
}

type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
	grouped bool
	done    atomic.Bool
}

func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	switch {
	case len(cfg.Brokers) == 0:
		return nil, errors.New("kafka brokers not configured")
	case len(cfg.Topics) == 0:
		return nil, errors.New("kafka topics not configured")
	case handler == nil:
		return nil, errors.New("kafka handler required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	start := kgo.NewOffset().AtEnd()
	if cfg.StartAtHead {
		start = kgo.NewOffset().AtStart()
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumeResetOffset(start),
	}
	if cfg.GroupID != "" {
		opts = append(opts, kgo.ConsumerGroup(cfg.GroupID), kgo.DisableAutoCommit())
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
		grouped: cfg.GroupID != "",
	}, nil
}

// Run polls until ctx is cancelled, then closes the client. It returns nil
// on cancellation. A consumer runs once.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.done.CompareAndSwap(false, true) {
		return ErrStopped
	}
	defer c.client.Close()

	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.ErrorContext(ctx, "kafka fetch failed", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(r *kgo.Record) { c.dispatch(ctx, r) })
	}
}

// Ping asks the seed brokers for metadata.
func (c *Consumer) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

func (c *Consumer) dispatch(ctx context.Context, r *kgo.Record) {
	msg := fromRecord(r)
	log := c.logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	if err := c.handler.Handle(ctx, msg); err != nil {
		log.ErrorContext(ctx, "kafka handler failed", "error", err)
		return
	}
	if !c.grouped {
		return
	}
	if err := c.client.CommitRecords(ctx, r); err != nil && ctx.Err() == nil {
		log.ErrorContext(ctx, "kafka offset commit failed", "error", err)
	}
}

func fromRecord(r *kgo.Record) *Message {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Timestamp,
	}
}
