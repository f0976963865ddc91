package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"veritas/internal/platform/kafka/consumer"
	"veritas/internal/platform/kafka/producer"
	"veritas/internal/scan/models"
	id "veritas/pkg/domain"
)

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Produce(ctx context.Context, msg *producer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestKafkaFeedPublishKeysByOwner(t *testing.T) {
	owner := id.NewUserID()
	record := alertRecord(owner, "drsmith", "unlicensed")

	prod := new(mockProducer)
	prod.On("Produce", mock.Anything, mock.MatchedBy(func(msg *producer.Message) bool {
		return msg.Topic == "scans" &&
			string(msg.Key) == owner.String() &&
			msg.Headers[headerEventType] == eventScanRecord
	})).Return(nil).Once()

	feed := NewKafkaFeed(prod, "scans", NewHub(), nil)
	require.NoError(t, feed.Publish(context.Background(), record))
	prod.AssertExpectations(t)
}

func TestKafkaFeedPublishPropagatesProducerError(t *testing.T) {
	prod := new(mockProducer)
	prod.On("Produce", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	feed := NewKafkaFeed(prod, "scans", NewHub(), nil)
	err := feed.Publish(context.Background(), alertRecord(id.NewUserID(), "x", ""))
	assert.ErrorContains(t, err, "broker down")
	assert.Error(t, feed.Publish(context.Background(), nil))
}

func TestKafkaFeedHandleRelaysIntoHub(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	owner := id.NewUserID()
	ch, cancel := hub.Subscribe(owner, 1)
	defer cancel()

	record := alertRecord(owner, "drsmith", "unlicensed")
	value, err := json.Marshal(record)
	require.NoError(t, err)

	feed := NewKafkaFeed(new(mockProducer), "scans", hub, nil)
	require.NoError(t, feed.Handle(context.Background(), &consumer.Message{
		Value:   value,
		Headers: map[string]string{headerEventType: eventScanRecord},
	}))

	got := <-ch
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, owner, got.UserID)
	assert.Equal(t, record.Status, got.Status)
	assert.True(t, record.ScannedAt.Equal(got.ScannedAt))
}

func TestKafkaFeedHandleSkipsForeignAndBrokenMessages(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	var delivered int
	hub.AddListener(func(context.Context, *models.ScanRecord) { delivered++ })

	feed := NewKafkaFeed(new(mockProducer), "scans", hub, nil)
	assert.NoError(t, feed.Handle(context.Background(), &consumer.Message{
		Value:   []byte(`{}`),
		Headers: map[string]string{headerEventType: "something_else"},
	}))
	assert.NoError(t, feed.Handle(context.Background(), &consumer.Message{Value: []byte("not json")}))
	assert.NoError(t, feed.Handle(context.Background(), &consumer.Message{Value: []byte(`{"username_scanned":"no owner"}`)}))
	assert.Zero(t, delivered)
}
