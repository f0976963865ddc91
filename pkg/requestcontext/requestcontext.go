// Package requestcontext carries request-scoped values (request id, caller identity,
// client metadata, request time) through context.Context.
package requestcontext

import (
	"context"
	"time"

	id "veritas/pkg/domain"
)

type (
	ctxKeyRequestID struct{}
	ctxKeyUserID    struct{}
	ctxKeySessionID struct{}
	ctxKeyRole      struct{}
	ctxKeyClientIP  struct{}
	ctxKeyUserAgent struct{}
	ctxKeyDevice    struct{}
	ctxKeyTime      struct{}
)

// DeviceClass describes how the client produces presence events.
type DeviceClass string

const (
	DevicePointer DeviceClass = "pointer" // desktop: pointer enter/leave
	DeviceTouch   DeviceClass = "touch"   // mobile: touch start/end
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, requestID)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return v
}

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, userID)
}

// UserID returns the authenticated user, or the zero UserID when unauthenticated.
func UserID(ctx context.Context) id.UserID {
	v, _ := ctx.Value(ctxKeyUserID{}).(id.UserID)
	return v
}

func WithSessionID(ctx context.Context, sessionID id.SessionID) context.Context {
	return context.WithValue(ctx, ctxKeySessionID{}, sessionID)
}

func SessionID(ctx context.Context) id.SessionID {
	v, _ := ctx.Value(ctxKeySessionID{}).(id.SessionID)
	return v
}

// WithRole stores the role claim carried by the caller's token. The admin
// middleware does not trust it on its own and re-checks the role store.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole{}, role)
}

func Role(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRole{}).(string)
	return v
}

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyClientIP{}, clientIP)
	return context.WithValue(ctx, ctxKeyUserAgent{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyClientIP{}).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent{}).(string)
	return v
}

func WithDevice(ctx context.Context, class DeviceClass, label string) context.Context {
	return context.WithValue(ctx, ctxKeyDevice{}, device{class: class, label: label})
}

type device struct {
	class DeviceClass
	label string
}

// Device returns the client's device class and display label. Unknown clients
// are treated as pointer devices.
func Device(ctx context.Context) (DeviceClass, string) {
	d, ok := ctx.Value(ctxKeyDevice{}).(device)
	if !ok {
		return DevicePointer, ""
	}
	return d.class, d.label
}

// WithTime pins the request-scoped "now".
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyTime{}, t)
}

// Now returns the request-scoped time, falling back to time.Now() for
// workers, CLI commands and tests that run outside the HTTP chain.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ctxKeyTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
