// Package metrics holds process-wide Prometheus metrics and the /metrics
// handler. Bounded contexts register their own metrics next to their code.
package metrics

import (
	"net/http"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process level metrics.
type Metrics struct {
	BuildInfo    *prometheus.GaugeVec
	DependencyUp *prometheus.GaugeVec
}

// New creates and registers the process metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the process metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BuildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "veritas_build_info",
			Help: "Build information, always 1",
		}, []string{"version", "environment", "go_version"}),
		DependencyUp: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "veritas_dependency_up",
			Help: "Whether the last readiness check of a dependency passed",
		}, []string{"dependency"}),
	}
}

// SetBuildInfo publishes the running version.
func (m *Metrics) SetBuildInfo(version, environment string) {
	if m == nil {
		return
	}
	m.BuildInfo.WithLabelValues(version, environment, runtime.Version()).Set(1)
}

// ObserveDependency records the outcome of a readiness check.
func (m *Metrics) ObserveDependency(name string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	m.DependencyUp.WithLabelValues(name).Set(v)
}

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
