package request

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	capture := func(got *string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*got = requestcontext.RequestID(r.Context())
		})
	}

	t.Run("generates an id when none is sent", func(t *testing.T) {
		var got string
		rec := httptest.NewRecorder()
		RequestID(capture(&got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans", nil))

		assert.Len(t, got, 36)
		assert.Equal(t, got, rec.Header().Get("X-Request-ID"))
	})

	t.Run("keeps a well formed client id", func(t *testing.T) {
		for _, clientID := range []string{"scan-42", "trace.span_1", strings.Repeat("a", MaxRequestIDLength)} {
			var got string
			req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
			req.Header.Set("X-Request-ID", clientID)
			rec := httptest.NewRecorder()

			RequestID(capture(&got)).ServeHTTP(rec, req)

			assert.Equal(t, clientID, got)
			assert.Equal(t, clientID, rec.Header().Get("X-Request-ID"))
		}
	})

	t.Run("replaces malformed client ids", func(t *testing.T) {
		for name, clientID := range map[string]string{
			"too long":  strings.Repeat("a", MaxRequestIDLength+1),
			"newline":   "ok\ninjected",
			"space":     "two words",
			"quote":     `a"b`,
			"semicolon": "a;b",
			"null byte": "a\x00b",
		} {
			t.Run(name, func(t *testing.T) {
				var got string
				req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
				req.Header.Set("X-Request-ID", clientID)
				rec := httptest.NewRecorder()

				RequestID(capture(&got)).ServeHTTP(rec, req)

				assert.NotEqual(t, clientID, got)
				assert.Len(t, got, 36)
			})
		}
	})

	t.Run("context without an id yields empty", func(t *testing.T) {
		assert.Empty(t, requestcontext.RequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
	})
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("board exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scanner/dwell", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "board exploded")
	assert.Contains(t, buf.String(), `"path":"/api/scanner/dwell"`)
}

func TestRecoveryRepanicsAbortHandler(t *testing.T) {
	handler := Recovery(slog.Default())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	handler := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scans", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Request Timeout")
}

func TestContentTypeJSON(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{"json post", http.MethodPost, "application/json", http.StatusNoContent},
		{"json with charset", http.MethodPatch, "application/json; charset=utf-8", http.StatusNoContent},
		{"no content type", http.MethodPost, "", http.StatusNoContent},
		{"form post", http.MethodPost, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"malformed type", http.MethodPut, "application/", http.StatusUnsupportedMediaType},
		{"get is not checked", http.MethodGet, "text/plain", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))
			req := httptest.NewRequest(tt.method, "/api/preferences", strings.NewReader(`{}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnsupportedMediaType {
				assert.Contains(t, rec.Body.String(), "invalid_content_type")
			}
		})
	}
}
