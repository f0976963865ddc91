package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veritas/internal/preferences/models"
	"veritas/internal/preferences/service"
	"veritas/internal/preferences/store"
	id "veritas/pkg/domain"
	"veritas/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	userID id.UserID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.userID = id.UserID(uuid.New())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(service.New(store.NewInMemory()), logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(r.Context(), s.userID)))
		})
	})
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, body string) (*httptest.ResponseRecorder, models.Preferences) {
	req := httptest.NewRequest(method, "/preferences", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	var prefs models.Preferences
	if rec.Code == http.StatusOK {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &prefs))
	}
	return rec, prefs
}

func (s *HandlerSuite) TestGetDefaults() {
	rec, prefs := s.do(http.MethodGet, "")
	s.Equal(http.StatusOK, rec.Code)
	s.False(prefs.ProtectionActive)
	s.True(prefs.NotificationsEnabled)
	s.Equal(s.userID, prefs.UserID)
}

func (s *HandlerSuite) TestUpdateThenGet() {
	rec, prefs := s.do(http.MethodPut, `{"protection_active":true}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.True(prefs.ProtectionActive)

	_, prefs = s.do(http.MethodGet, "")
	s.True(prefs.ProtectionActive)
	s.True(prefs.NotificationsEnabled)
}

func (s *HandlerSuite) TestEmptyUpdateRejected() {
	rec, _ := s.do(http.MethodPut, `{}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestMalformedBody() {
	rec, _ := s.do(http.MethodPut, `{"protection_active":`)
	s.Equal(http.StatusBadRequest, rec.Code)
}
