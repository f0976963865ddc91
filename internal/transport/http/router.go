// Package httptransport assembles the chi router: shared middleware, the
// public probes, the authenticated API and the service-to-service routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"veritas/pkg/platform/middleware/auth"
	"veritas/pkg/platform/middleware/device"
	"veritas/pkg/platform/middleware/metadata"
	"veritas/pkg/platform/middleware/request"
	"veritas/pkg/platform/middleware/requesttime"
	"veritas/pkg/platform/middleware/servicetoken"
)

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// RegistrarFunc adapts a plain function, such as a handler's
// RegisterStreaming method, to Registrar.
type RegistrarFunc func(r chi.Router)

func (f RegistrarFunc) Register(r chi.Router) { f(r) }

// Config carries the transport settings.
type Config struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	TrustedProxies []netip.Prefix
	Auth           auth.Config
	ServiceToken   string
}

// Routes lists everything the router mounts. Nil entries are skipped.
type Routes struct {
	Health    Registrar
	Metrics   http.Handler
	Validator auth.JWTValidator
	// API routes require a user token and run under the request timeout.
	API []Registrar
	// Streaming routes require a user token but hold the connection open
	// (WebSocket, SSE), so no timeout or body limit applies.
	Streaming []Registrar
	// Service routes are called by other backends with the shared service
	// token instead of a user token.
	Service []Registrar
}

// NewRouter wires all endpoints with middleware.
func NewRouter(cfg Config, routes Routes, latency *request.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(&metadata.Config{TrustedProxies: cfg.TrustedProxies}).Handler)
	r.Use(device.Device)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(logger))
	r.Use(request.Recovery(logger))
	r.Use(request.LatencyMiddleware(latency, routePattern))

	if routes.Health != nil {
		routes.Health.Register(r)
	}
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(bounded(cfg)...)
		r.Use(servicetoken.Require(cfg.ServiceToken, logger))
		for _, reg := range routes.Service {
			reg.Register(r)
		}
	})

	if routes.Validator == nil {
		return r
	}
	requireAuth := auth.RequireAuth(routes.Validator, cfg.Auth, logger)

	r.Group(func(r chi.Router) {
		r.Use(bounded(cfg)...)
		r.Use(requireAuth)
		for _, reg := range routes.API {
			reg.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		for _, reg := range routes.Streaming {
			reg.Register(r)
		}
	})

	return r
}

// bounded returns the middleware for ordinary request/response routes.
func bounded(cfg Config) []func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{request.ContentTypeJSON}
	if cfg.MaxBodyBytes > 0 {
		mws = append(mws, request.BodyLimit(cfg.MaxBodyBytes))
	}
	if cfg.RequestTimeout > 0 {
		mws = append(mws, request.Timeout(cfg.RequestTimeout))
	}
	return mws
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
