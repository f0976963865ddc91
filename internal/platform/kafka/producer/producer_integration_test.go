//go:build integration

package producer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"veritas/internal/platform/kafka"
	"veritas/internal/platform/kafka/producer"
	"veritas/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())

	cfg := kafka.DefaultConfig()
	cfg.Brokers = s.kafka.Brokers
	cfg.DeliveryTimeout = 10 * time.Second
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *ProducerIntegrationSuite) TestProduceDeliversMessageWithHeaders() {
	ctx := context.Background()
	topic := "test-produce-sync"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	err := s.producer.Produce(ctx, &producer.Message{
		Topic:   topic,
		Key:     []byte("owner-1"),
		Value:   []byte(`{"id":"x"}`),
		Headers: map[string]string{"event_type": "scan_record"},
	})
	s.Require().NoError(err)

	client, err := s.kafka.NewConsumer(ctx, "test-produce-sync-group", topic)
	s.Require().NoError(err)
	defer client.Close()

	record := s.kafka.WaitForMessage(ctx, client, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "owner-1"
	})
	s.Require().NotNil(record)
	s.Equal(`{"id":"x"}`, string(record.Value))
	s.Require().Len(record.Headers, 1)
	s.Equal("event_type", record.Headers[0].Key)
}

func (s *ProducerIntegrationSuite) TestPing() {
	s.NoError(s.producer.Ping(context.Background()))
}

func (s *ProducerIntegrationSuite) TestClosedProducerRejects() {
	cfg := kafka.DefaultConfig()
	cfg.Brokers = s.kafka.Brokers
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.Require().NoError(prod.Close())

	err = prod.Produce(context.Background(), &producer.Message{Topic: "closed", Value: []byte("v")})
	s.ErrorIs(err, producer.ErrClosed)
	s.ErrorIs(prod.Ping(context.Background()), producer.ErrClosed)
	s.NoError(prod.Close())
}
