//go:build integration

package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veritas/internal/notify"
	"veritas/internal/platform/kafka"
	"veritas/internal/platform/kafka/consumer"
	"veritas/internal/platform/kafka/producer"
	"veritas/internal/scan/models"
	id "veritas/pkg/domain"
	"veritas/pkg/testutil/containers"
)

type KafkaFeedIntegrationSuite struct {
	suite.Suite
	kafka *containers.KafkaContainer
}

func TestKafkaFeedIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaFeedIntegrationSuite))
}

func (s *KafkaFeedIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())
}

// Two instances share the topic: a record written by one reaches a
// subscriber connected to the other.
func (s *KafkaFeedIntegrationSuite) TestRecordCrossesInstances() {
	ctx := context.Background()
	topic := "veritas-feed-test"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 3, 1))

	cfg := kafka.DefaultConfig()
	cfg.Brokers = s.kafka.Brokers
	cfg.Topic = topic

	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	defer prod.Close()

	writerHub, readerHub := notify.NewHub(), notify.NewHub()
	defer writerHub.Close()
	defer readerHub.Close()
	writer := notify.NewKafkaFeed(prod, topic, writerHub, nil)
	reader := notify.NewKafkaFeed(prod, topic, readerHub, nil)

	cons, err := consumer.New(consumer.FromPlatform(cfg), reader, nil)
	s.Require().NoError(err)
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- cons.Run(runCtx) }()
	defer func() {
		stop()
		<-done
	}()
	s.Require().Eventually(func() bool { return cons.Ping(ctx) == nil }, 10*time.Second, 100*time.Millisecond)
	time.Sleep(time.Second)

	owner := id.NewUserID()
	records, cancel := readerHub.Subscribe(owner, 1)
	defer cancel()

	record := &models.ScanRecord{
		ID:              id.NewScanID(),
		UserID:          owner,
		UsernameScanned: "drsmith",
		ContentType:     "medical_advice",
		Platform:        "instagram",
		Status:          models.StatusAlert,
		AlertMessage:    "Unlicensed",
		ConfidenceScore: 88,
		ScannedAt:       time.Now().UTC(),
	}
	s.Require().NoError(writer.Publish(ctx, record))

	select {
	case got := <-records:
		s.Equal(record.ID, got.ID)
		s.Equal("Unlicensed", got.AlertMessage)
	case <-time.After(15 * time.Second):
		s.Fail("record did not arrive through kafka")
	}
}
