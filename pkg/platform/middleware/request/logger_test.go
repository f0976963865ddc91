package request

import (
	"bufio"
	"bytes"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	server, client := net.Pipe()
	_ = client.Close()
	return server, bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server)), nil
}

func TestLogger(t *testing.T) {
	t.Run("logs status and request id", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		handler := RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})))

		req := httptest.NewRequest(http.MethodGet, "/scans", nil)
		req.Header.Set("X-Request-ID", "req-42")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Contains(t, buf.String(), `"status":418`)
		assert.Contains(t, buf.String(), `"request_id":"req-42"`)
	})

	t.Run("skips healthy health checks", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Empty(t, buf.String())
	})

	t.Run("forwards flush for streaming handlers", func(t *testing.T) {
		logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
		rec := httptest.NewRecorder()
		handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			f, ok := w.(http.Flusher)
			require.True(t, ok)
			_, _ = w.Write([]byte("data: hi\n\n"))
			f.Flush()
		}))

		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/stream", nil))
		assert.True(t, rec.Flushed)
	})

	t.Run("forwards hijack for websocket upgrades", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		rec := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
		handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			h, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := h.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
		}))

		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scanner/ws", nil))
		assert.True(t, rec.hijacked)
		assert.Contains(t, buf.String(), `"hijacked":true`)
		assert.Contains(t, buf.String(), `"status":101`)
	})
}

func TestLatencyMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	handler := LatencyMiddleware(m, func(*http.Request) string { return "/scans/{scanID}" })(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/scans/abc", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/scans/def", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(m.EndpointLatency))

	unmatched := LatencyMiddleware(m, func(*http.Request) string { return "" })(http.NotFoundHandler())
	unmatched.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path", nil))
	assert.Equal(t, 2, testutil.CollectAndCount(m.EndpointLatency))
	assert.Equal(t, 1, testutil.CollectAndCount(m.EndpointLatency.WithLabelValues(http.MethodGet, "unmatched").(prometheus.Histogram)))
}

func TestLatencyMiddlewareWithoutMetrics(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })
	w := httptest.NewRecorder()
	LatencyMiddleware(nil, nil)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}
