package servicetoken

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ServiceTokenSuite covers the invariant that a wrong token never reaches
// the handler.
type ServiceTokenSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestServiceTokenSuite(t *testing.T) {
	suite.Run(t, new(ServiceTokenSuite))
}

func (s *ServiceTokenSuite) SetupTest() {
	s.logger = slog.Default()
}

func (s *ServiceTokenSuite) serve(expected, header string) (*httptest.ResponseRecorder, bool, string) {
	var called bool
	var caller string
	handler := Require(expected, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		caller = Caller(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/functions/analyze-content", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	req.Header.Set("X-Caller-ID", "scanner")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, called, caller
}

func (s *ServiceTokenSuite) TestRequire() {
	s.Run("correct token passes and records caller", func() {
		rec, called, caller := s.serve("secret", "Bearer secret")
		s.True(called)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("scanner", caller)
	})

	s.Run("wrong token is rejected", func() {
		rec, called, _ := s.serve("secret", "Bearer nope")
		s.False(called)
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.JSONEq(`{"error":"unauthorized","error_description":"service token required"}`, rec.Body.String())
	})

	s.Run("missing token is rejected", func() {
		rec, called, _ := s.serve("secret", "")
		s.False(called)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("empty expected token disables the check", func() {
		rec, called, _ := s.serve("", "")
		s.True(called)
		s.Equal(http.StatusOK, rec.Code)
	})
}

func (s *ServiceTokenSuite) TestCallerOnFreshContext() {
	s.Empty(Caller(context.Background()))
}
