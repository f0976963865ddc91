package audit

import (
	"context"
	"fmt"
	"log/slog"

	id "veritas/pkg/domain"
	"veritas/pkg/platform/privacy"
	"veritas/pkg/requestcontext"
)

// Emitter is the interface for audit event emission.
// Satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Logger writes an audit line to the text log and, when an emitter is set,
// a structured Event to the audit store. A nil *Logger is a no-op.
type Logger struct {
	textLogger *slog.Logger
	emitter    Emitter
}

// NewLogger creates an audit logger. Either argument may be nil.
func NewLogger(textLogger *slog.Logger, emitter Emitter) *Logger {
	return &Logger{
		textLogger: textLogger,
		emitter:    emitter,
	}
}

// Log records event with slog-style attributes. user_id, subject and reason
// map onto Event fields; user_id defaults to the authenticated caller. Request
// ID, device label and masked client IP come from ctx.
//
// Usage:
//
//	logger.Log(ctx, "scan_deleted", "user_id", userID.String(), "subject", scanID.String())
func (l *Logger) Log(ctx context.Context, event string, attributes ...any) {
	if l == nil {
		return
	}
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}

	l.logToText(ctx, event, attributes)
	l.emitToAudit(ctx, event, requestID, attributes)
}

func (l *Logger) logToText(ctx context.Context, event string, attributes []any) {
	if l.textLogger == nil {
		return
	}
	args := append(attributes, "event", event, "log_type", "audit")
	l.textLogger.InfoContext(ctx, event, args...)
}

func (l *Logger) emitToAudit(ctx context.Context, event, requestID string, attributes []any) {
	if l.emitter == nil {
		return
	}

	userIDStr := extractString(attributes, "user_id")
	// Events about anonymous callers carry a nil user ID.
	userID, _ := id.ParseUserID(userIDStr) //nolint:errcheck // best-effort extraction for audit
	if userIDStr == "" {
		userID = requestcontext.UserID(ctx)
		if !userID.IsNil() {
			userIDStr = userID.String()
		}
	}
	subject := extractString(attributes, "subject")
	if subject == "" {
		subject = userIDStr
	}
	_, device := requestcontext.Device(ctx)

	err := l.emitter.Emit(ctx, Event{
		Category:  CategoryOf(event),
		UserID:    userID,
		Subject:   subject,
		Action:    event,
		Reason:    extractString(attributes, "reason"),
		RequestID: requestID,
		Device:    device,
		IPAddress: privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
	})
	if err != nil && l.textLogger != nil {
		l.textLogger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"event", event,
		)
	}
}

// extractString returns the value following key in a slog-style key/value list.
func extractString(attributes []any, key string) string {
	for i := 0; i+1 < len(attributes); i += 2 {
		if k, ok := attributes[i].(string); ok && k == key {
			switch v := attributes[i+1].(type) {
			case string:
				return v
			case fmt.Stringer:
				return v.String()
			}
		}
	}
	return ""
}
