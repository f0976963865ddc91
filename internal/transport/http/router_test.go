package httptransport

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"veritas/pkg/platform/middleware/auth"
	"veritas/pkg/platform/middleware/request"
	"veritas/pkg/requestcontext"
)

type stubValidator struct {
	userID string
}

func (v stubValidator) ValidateToken(token string) (*auth.JWTClaims, error) {
	if token != "good" {
		return nil, errors.New("invalid token")
	}
	return &auth.JWTClaims{UserID: v.userID, Role: "user"}, nil
}

type RouterSuite struct {
	suite.Suite
	router  http.Handler
	latency *request.Metrics
	userID  string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.userID = uuid.NewString()
	s.latency = request.NewMetricsWithRegistry(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	whoami := RegistrarFunc(func(r chi.Router) {
		r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(requestcontext.UserID(r.Context()).String()))
		})
	})
	stream := RegistrarFunc(func(r chi.Router) {
		r.Get("/stream", func(w http.ResponseWriter, _ *http.Request) {
			_, canFlush := w.(http.Flusher)
			if !canFlush {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
	})
	service := RegistrarFunc(func(r chi.Router) {
		r.Post("/functions/echo", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	})
	health := RegistrarFunc(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	})

	s.router = NewRouter(Config{
		RequestTimeout: 0,
		MaxBodyBytes:   1 << 10,
		Auth:           auth.Config{LoginURL: "https://login.example.test/signin"},
		ServiceToken:   "svc-secret",
	}, Routes{
		Health:    health,
		Metrics:   http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		Validator: stubValidator{userID: s.userID},
		API:       []Registrar{whoami},
		Streaming: []Registrar{stream},
		Service:   []Registrar{service},
	}, s.latency, logger)
}

func (s *RouterSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) TestPublicProbes() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))

	rec = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestAPIRequiresToken() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = s.do(req)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(s.userID, rec.Body.String())
}

func (s *RouterSuite) TestBrowserIsRedirectedToLogin() {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Accept", "text/html")
	rec := s.do(req)
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Contains(rec.Header().Get("Location"), "https://login.example.test/signin")
}

func (s *RouterSuite) TestStreamingRoutesKeepFlusher() {
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := s.do(req)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestServiceRoutesUseServiceToken() {
	rec := s.do(httptest.NewRequest(http.MethodPost, "/functions/echo", nil))
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/functions/echo", nil)
	req.Header.Set("Authorization", "Bearer svc-secret")
	rec = s.do(req)
	s.Equal(http.StatusAccepted, rec.Code)
}

func (s *RouterSuite) TestLatencyIsKeyedByRoutePattern() {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer good")
	s.do(req)

	s.Equal(1, testutil.CollectAndCount(s.latency.EndpointLatency, "veritas_http_request_duration_seconds"))
}
