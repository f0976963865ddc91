// Package metrics holds Prometheus collectors for the scan controller.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for dwell, analysis and persistence.
type Metrics struct {
	DwellCompletions    prometheus.Counter
	ScansStarted        prometheus.Counter
	ScansCompleted      *prometheus.CounterVec
	AnalysisFailures    *prometheus.CounterVec
	AnalysisLatency     prometheus.Histogram
	InvariantViolations *prometheus.CounterVec
	PersistFailures     *prometheus.CounterVec
	ActiveBoards        prometheus.Gauge
	DroppedEvents       prometheus.Counter
	BoardsEvicted       prometheus.Counter
}

// New registers scan metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers scan metrics on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DwellCompletions: f.NewCounter(prometheus.CounterOpts{
			Name: "veritas_dwell_completions_total",
			Help: "Total number of qualifying dwells that reached the threshold",
		}),
		ScansStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "veritas_scans_started_total",
			Help: "Total number of analyses issued after a completed dwell",
		}),
		ScansCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_scans_completed_total",
			Help: "Total number of scans that reached a terminal status, labeled by status",
		}, []string{"status"}),
		AnalysisFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_analysis_failures_total",
			Help: "Total number of failed analyses, labeled by failure category",
		}, []string{"category"}),
		AnalysisLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritas_analysis_latency_seconds",
			Help:    "Latency of analysis calls issued by the scan controller",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 20},
		}),
		InvariantViolations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_scan_invariant_violations_total",
			Help: "Dwell completions rejected because the item was not pending, labeled by status",
		}, []string{"status"}),
		PersistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_scan_persist_failures_total",
			Help: "Scan record store failures, labeled by operation",
		}, []string{"operation"}),
		ActiveBoards: f.NewGauge(prometheus.GaugeOpts{
			Name: "veritas_scan_active_boards",
			Help: "Number of open scanner boards",
		}),
		DroppedEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "veritas_scan_events_dropped_total",
			Help: "Board events dropped because a subscriber was not keeping up",
		}),
		BoardsEvicted: f.NewCounter(prometheus.CounterOpts{
			Name: "veritas_scan_boards_evicted_total",
			Help: "Idle scanner boards closed by the sweeper",
		}),
	}
}
