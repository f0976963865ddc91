// Package publisher delivers audit events to a store, inline or through a
// bounded background queue.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	audit "veritas/pkg/platform/audit"
	"veritas/pkg/requestcontext"
)

const appendTimeout = 5 * time.Second

// Metrics counts events that never reached the store.
type Metrics struct {
	Lost *prometheus.CounterVec
}

// NewMetrics registers on reg; nil uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		Lost: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_audit_events_lost_total",
			Help: "Audit events dropped before persistence, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) lost(reason string) {
	if m != nil {
		m.Lost.WithLabelValues(reason).Inc()
	}
}

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics

	async  bool
	events chan audit.Event
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues up to size events for a background writer. When the
// queue is full Emit drops the event and returns an error.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan audit.Event, size)
			p.async = true
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

func WithPublisherMetrics(m *Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

// NewPublisher creates a publisher. With WithAsyncBuffer, Close must be
// called to drain queued events.
func NewPublisher(store audit.Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		err := p.store.Append(ctx, event)
		cancel()
		if err != nil {
			p.metrics.lost("store_error")
			p.warn("failed to persist audit event", event, "error", err)
		}
	}
}

// Close stops accepting events and waits for the queue to drain. Safe to
// call more than once.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.async {
		close(p.events)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Emit fills in the timestamp (the request's pinned time when present) and
// category, then stores or queues the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.CategoryOf(event.Action)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.metrics.lost("closed")
		return dErrors.New(dErrors.CodeUnavailable, "audit publisher closed")
	}
	if !p.async {
		return p.store.Append(ctx, event)
	}

	select {
	case p.events <- event:
		return nil
	case <-ctx.Done():
		p.metrics.lost("canceled")
		return ctx.Err()
	default:
		p.metrics.lost("buffer_full")
		p.warn("audit buffer full, event dropped", event)
		return dErrors.New(dErrors.CodeUnavailable, "audit buffer full")
	}
}

func (p *Publisher) warn(msg string, event audit.Event, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Warn(msg, append([]any{"action", event.Action, "user_id", event.UserID.String()}, args...)...)
}

func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return p.store.ListByUser(ctx, userID)
}

// Recent returns the newest events across all users.
func (p *Publisher) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}
