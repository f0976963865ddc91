package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts realtime deliveries.
type Metrics struct {
	Published *prometheus.CounterVec
	Dropped   *prometheus.CounterVec
	Streams   prometheus.Gauge
}

// NewMetrics registers notification metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers notification metrics on reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_notify_published_total",
			Help: "Scan records fanned out to subscribers, labeled by source",
		}, []string{"source"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_notify_dropped_total",
			Help: "Deliveries dropped, labeled by channel",
		}, []string{"channel"}),
		Streams: f.NewGauge(prometheus.GaugeOpts{
			Name: "veritas_notify_open_streams",
			Help: "Number of open alert streams",
		}),
	}
}

func (m *Metrics) published(source string) {
	if m != nil {
		m.Published.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) dropped(channel string) {
	if m != nil {
		m.Dropped.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) streamOpened() {
	if m != nil {
		m.Streams.Inc()
	}
}

func (m *Metrics) streamClosed() {
	if m != nil {
		m.Streams.Dec()
	}
}
