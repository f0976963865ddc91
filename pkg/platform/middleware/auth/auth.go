// Package auth validates bearer tokens issued by the external auth flow and
// places the caller's identity in the request context.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	id "veritas/pkg/domain"
	"veritas/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	UserID    string
	SessionID string
	Role      string
	JTI       string
}

// Config controls where tokens are read from and where browsers are sent
// when they have none.
type Config struct {
	// LoginURL receives browser navigations without a valid session. When
	// empty every client gets a JSON 401.
	LoginURL string
	// CookieName is an optional session cookie carrying the bearer token.
	CookieName string
	// AllowQueryToken accepts ?access_token= on GET requests. Browsers cannot
	// set headers on WebSocket or EventSource connections.
	AllowQueryToken bool
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

type parsedClaims struct {
	UserID    id.UserID
	SessionID id.SessionID
}

func parseClaims(claims *JWTClaims) (*parsedClaims, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user_id: %w", err)
	}

	var sessionID id.SessionID
	if claims.SessionID != "" {
		sessionID, err = id.ParseSessionID(claims.SessionID)
		if err != nil {
			return nil, fmt.Errorf("invalid session_id: %w", err)
		}
	}
	return &parsedClaims{UserID: userID, SessionID: sessionID}, nil
}

func (c Config) extractToken(r *http.Request) (string, bool) {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return token, true
	}
	if c.CookieName != "" {
		if cookie, err := r.Cookie(c.CookieName); err == nil && cookie.Value != "" {
			return cookie.Value, true
		}
	}
	if c.AllowQueryToken && r.Method == http.MethodGet {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// wantsHTML reports whether the request is a browser navigation.
func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}

// reject answers an unauthenticated request: browsers are redirected to the
// login page, API clients get a JSON 401.
func (c Config) reject(w http.ResponseWriter, r *http.Request, desc string) {
	if c.LoginURL != "" && wantsHTML(r) {
		target := c.LoginURL
		if u, err := url.Parse(c.LoginURL); err == nil {
			q := u.Query()
			q.Set("redirect", r.URL.RequestURI())
			u.RawQuery = q.Encode()
			target = u.String()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", desc)
}

// RequireAuth returns middleware that validates the bearer token and stores
// the typed user id, session id and role claim in the request context.
func RequireAuth(validator JWTValidator, cfg Config, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := cfg.extractToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				cfg.reject(w, r, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				cfg.reject(w, r, "Invalid or expired token")
				return
			}

			parsed, err := parseClaims(claims)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed token claims",
					"error", err,
					"request_id", requestID,
				)
				cfg.reject(w, r, "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithUserID(ctx, parsed.UserID)
			ctx = requestcontext.WithSessionID(ctx, parsed.SessionID)
			ctx = requestcontext.WithRole(ctx, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
