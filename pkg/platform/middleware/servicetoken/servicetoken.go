// Package servicetoken guards service-to-service endpoints with a shared
// bearer key.
package servicetoken

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"veritas/pkg/requestcontext"
)

type contextKeyCaller struct{}

// Caller returns the X-Caller-ID supplied by the calling service, if any.
func Caller(ctx context.Context) string {
	if caller, ok := ctx.Value(contextKeyCaller{}).(string); ok {
		return caller
	}
	return ""
}

// Require rejects requests whose bearer token does not match expected. An
// empty expected token disables the check.
func Require(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				logger.WarnContext(ctx, "service token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"service token required"}`))
				return
			}

			if caller := r.Header.Get("X-Caller-ID"); caller != "" {
				ctx = context.WithValue(ctx, contextKeyCaller{}, caller)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
