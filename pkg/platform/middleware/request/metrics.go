package request

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Buckets reach past the analyzer timeout so slow analyze-content calls
// land in a finite bucket.
var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
}

// NewMetrics registers on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EndpointLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veritas_http_request_duration_seconds",
			Help:    "HTTP handler latency by method and route pattern.",
			Buckets: latencyBuckets,
		}, []string{"method", "route"}),
	}
}

// LatencyMiddleware observes handler latency keyed by the route pattern
// routeFn resolves. Unmatched requests share the "unmatched" route so raw
// paths never become label values.
func LatencyMiddleware(m *Metrics, routeFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			route := "unmatched"
			if routeFn != nil {
				if pattern := routeFn(r); pattern != "" {
					route = pattern
				}
			}
			m.EndpointLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
