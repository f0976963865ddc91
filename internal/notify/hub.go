// Package notify fans inserted scan records out to realtime consumers: the
// per-user alert stream, ops push channels, and other instances via Kafka.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"veritas/internal/scan/models"
	id "veritas/pkg/domain"
)

// DefaultBuffer is the subscriber channel size used when none is given.
const DefaultBuffer = 16

// Listener observes every record passing through the hub. Listeners run on
// the publishing goroutine and must not block.
type Listener func(ctx context.Context, record *models.ScanRecord)

type HubOption func(*Hub)

// WithHubLogger sets the hub logger.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHubMetrics sets the metrics instance for the hub.
func WithHubMetrics(m *Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// Hub delivers records to subscribers of the owning user. Delivery never
// blocks the publisher: a full subscriber misses the record.
type Hub struct {
	logger  *slog.Logger
	metrics *Metrics

	mu        sync.RWMutex
	subs      map[id.UserID]map[uint64]chan *models.ScanRecord
	next      uint64
	listeners []Listener
	closed    bool
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		logger: slog.Default(),
		subs:   make(map[id.UserID]map[uint64]chan *models.ScanRecord),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Subscribe registers for records owned by owner. The returned cancel
// function is idempotent and closes the channel. Subscribing to a closed hub
// returns an already closed channel.
func (h *Hub) Subscribe(owner id.UserID, buffer int) (<-chan *models.ScanRecord, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan *models.ScanRecord, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.next++
	key := h.next
	if h.subs[owner] == nil {
		h.subs[owner] = make(map[uint64]chan *models.ScanRecord)
	}
	h.subs[owner][key] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			owned, ok := h.subs[owner]
			if !ok {
				return
			}
			if c, ok := owned[key]; ok {
				delete(owned, key)
				close(c)
			}
			if len(owned) == 0 {
				delete(h.subs, owner)
			}
		})
	}
}

// AddListener registers a hook called for every delivered record.
func (h *Hub) AddListener(l Listener) {
	if l == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

// Publish delivers a stored record to its owner's subscribers and to every
// listener. It satisfies the scan controller's record publisher.
func (h *Hub) Publish(ctx context.Context, record *models.ScanRecord) error {
	return h.deliver(ctx, record, "local")
}

func (h *Hub) deliver(ctx context.Context, record *models.ScanRecord, source string) error {
	if record == nil || record.UserID.IsNil() {
		return errors.New("record with owner required")
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return errors.New("hub closed")
	}
	for _, ch := range h.subs[record.UserID] {
		select {
		case ch <- record:
		default:
			h.metrics.dropped("subscriber")
			h.logger.WarnContext(ctx, "dropping record for slow subscriber",
				"user_id", record.UserID.String(),
				"scan_id", record.ID.String(),
			)
		}
	}
	listeners := append([]Listener(nil), h.listeners...)
	h.mu.RUnlock()

	h.metrics.published(source)
	for _, l := range listeners {
		l(ctx, record)
	}
	return nil
}

// Subscribers returns the number of open subscriptions for owner.
func (h *Hub) Subscribers(owner id.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[owner])
}

// Close ends every subscription. Later publishes fail.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for owner, owned := range h.subs {
		for key, ch := range owned {
			delete(owned, key)
			close(ch)
		}
		delete(h.subs, owner)
	}
}
