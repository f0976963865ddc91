package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/pkg/requestcontext"
)

const (
	readerID  = "550e8400-e29b-41d4-a716-446655440001"
	sessionID = "550e8400-e29b-41d4-a716-446655440002"
	loginURL  = "https://auth.example.test/login"
)

// tokenTable accepts exactly the tokens it holds.
type tokenTable map[string]*JWTClaims

func (t tokenTable) ValidateToken(token string) (*JWTClaims, error) {
	if c, ok := t[token]; ok {
		return c, nil
	}
	return nil, errors.New("token is expired")
}

var tokens = tokenTable{
	"reader":      {UserID: readerID, SessionID: sessionID, Role: "user", JTI: "j1"},
	"admin":       {UserID: readerID, Role: "admin", JTI: "j2"},
	"bad-subject": {UserID: "not-a-uuid", JTI: "j3"},
	"bad-session": {UserID: readerID, SessionID: "nope", JTI: "j4"},
}

// captured records the context the protected handler ran with.
type captured struct {
	ctx context.Context
}

func (c *captured) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.ctx = r.Context()
	w.WriteHeader(http.StatusNoContent)
}

func serve(t *testing.T, cfg Config, req *http.Request) (*httptest.ResponseRecorder, *captured, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	next := &captured{}
	w := httptest.NewRecorder()
	RequireAuth(tokens, cfg, logger)(next).ServeHTTP(w, req)
	return w, next, &logs
}

func defaultConfig() Config {
	return Config{LoginURL: loginURL, CookieName: "veritas_session", AllowQueryToken: true}
}

func TestRequireAuthTokenSources(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(*Config)
		request func() *http.Request
		allowed bool
	}{
		{
			name: "bearer header",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/scans", nil)
				r.Header.Set("Authorization", "Bearer reader")
				return r
			},
			allowed: true,
		},
		{
			name: "session cookie on a POST",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/scanner/reset", nil)
				r.AddCookie(&http.Cookie{Name: "veritas_session", Value: "reader"})
				return r
			},
			allowed: true,
		},
		{
			name: "query token on a websocket upgrade",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/scanner/ws?access_token=reader", nil)
			},
			allowed: true,
		},
		{
			name: "query token ignored on POST",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/scanner/reset?access_token=reader", nil)
			},
		},
		{
			name: "query token disabled",
			cfg:  func(c *Config) { c.AllowQueryToken = false },
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/scanner/ws?access_token=reader", nil)
			},
		},
		{
			name: "cookie name unset",
			cfg:  func(c *Config) { c.CookieName = "" },
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/scans", nil)
				r.AddCookie(&http.Cookie{Name: "veritas_session", Value: "reader"})
				return r
			},
		},
		{
			name: "header wins over a stale cookie",
			request: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/scans", nil)
				r.Header.Set("Authorization", "Bearer reader")
				r.AddCookie(&http.Cookie{Name: "veritas_session", Value: "expired"})
				return r
			},
			allowed: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}
			w, next, _ := serve(t, cfg, tc.request())
			if tc.allowed {
				assert.Equal(t, http.StatusNoContent, w.Code)
				require.NotNil(t, next.ctx)
				return
			}
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Nil(t, next.ctx)
		})
	}
}

func TestRequireAuthMalformedHeaders(t *testing.T) {
	for _, header := range []string{
		"reader",
		"Basic dXNlcjpwYXNz",
		"bearer reader",
		"Bearerreader",
		"Bearer ",
	} {
		t.Run(header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/scans", nil)
			r.Header.Set("Authorization", header)
			w, next, _ := serve(t, defaultConfig(), r)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Nil(t, next.ctx)
		})
	}
}

func TestRequireAuthRejections(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		desc    string
		logLine string
	}{
		{"no token", "", "Missing or invalid Authorization header", "missing token"},
		{"unknown token", "forged", "Invalid or expired token", "invalid token"},
		{"subject is not a uuid", "bad-subject", "Invalid or expired token", "malformed token claims"},
		{"session is not a uuid", "bad-session", "Invalid or expired token", "malformed token claims"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodDelete, "/scans/abc", nil)
			if tc.token != "" {
				r.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w, next, logs := serve(t, defaultConfig(), r)

			assert.Nil(t, next.ctx)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"error":"unauthorized","error_description":"`+tc.desc+`"}`, w.Body.String())
			assert.Contains(t, logs.String(), tc.logLine)
		})
	}
}

func TestRequireAuthIdentityInContext(t *testing.T) {
	t.Run("reader with session", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/scans", nil)
		r.Header.Set("Authorization", "Bearer reader")
		_, next, _ := serve(t, defaultConfig(), r)

		require.NotNil(t, next.ctx)
		assert.Equal(t, readerID, requestcontext.UserID(next.ctx).String())
		assert.Equal(t, sessionID, requestcontext.SessionID(next.ctx).String())
		assert.Equal(t, "user", requestcontext.Role(next.ctx))
	})

	t.Run("session claim is optional", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin/scans", nil)
		r.Header.Set("Authorization", "Bearer admin")
		_, next, _ := serve(t, defaultConfig(), r)

		require.NotNil(t, next.ctx)
		assert.True(t, requestcontext.SessionID(next.ctx).IsNil())
		assert.Equal(t, "admin", requestcontext.Role(next.ctx))
	})
}

func TestRequireAuthBrowserRedirect(t *testing.T) {
	t.Run("navigation goes to login with a return path", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/scanner/items?tab=history", nil)
		r.Header.Set("Accept", "text/html,application/xhtml+xml")
		w, _, _ := serve(t, defaultConfig(), r)

		require.Equal(t, http.StatusSeeOther, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "auth.example.test", loc.Host)
		assert.Equal(t, "/login", loc.Path)
		assert.Equal(t, "/scanner/items?tab=history", loc.Query().Get("redirect"))
	})

	t.Run("login url keeps its own query", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.LoginURL = loginURL + "?app=veritas"
		r := httptest.NewRequest(http.MethodGet, "/scans", nil)
		r.Header.Set("Accept", "text/html")
		w, _, _ := serve(t, cfg, r)

		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "veritas", loc.Query().Get("app"))
		assert.Equal(t, "/scans", loc.Query().Get("redirect"))
	})

	t.Run("expired token in a browser also redirects", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/scans", nil)
		r.Header.Set("Accept", "text/html")
		r.AddCookie(&http.Cookie{Name: "veritas_session", Value: "expired"})
		w, _, _ := serve(t, defaultConfig(), r)

		assert.Equal(t, http.StatusSeeOther, w.Code)
	})

	t.Run("form posts get JSON", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/scans", nil)
		r.Header.Set("Accept", "text/html")
		w, _, _ := serve(t, defaultConfig(), r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no login url configured", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.LoginURL = ""
		r := httptest.NewRequest(http.MethodGet, "/scanner/items", nil)
		r.Header.Set("Accept", "text/html")
		w, _, _ := serve(t, cfg, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
