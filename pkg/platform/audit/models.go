// Package audit records who did what to scan history, fake-account reports
// and protection settings.
package audit

import (
	"context"
	"time"

	id "veritas/pkg/domain"
)

// EventCategory groups events for retention and review.
type EventCategory string

const (
	CategoryOperations EventCategory = "operations"
	CategorySecurity   EventCategory = "security"
	CategoryAdmin      EventCategory = "admin"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    id.UserID     `json:"user_id"`
	Subject   string        `json:"subject"`
	Action    string        `json:"action"`
	Reason    string        `json:"reason,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Device    string        `json:"device,omitempty"`
	IPAddress string        `json:"ip_address,omitempty"`
}

type AuditEvent string

const (
	EventScanDeleted          AuditEvent = "scan_deleted"
	EventProtectionChanged    AuditEvent = "protection_changed"
	EventPreferencesUpdated   AuditEvent = "preferences_updated"
	EventAccountReported      AuditEvent = "account_reported"
	EventAccountStatusChanged AuditEvent = "account_status_changed"
	EventAccountDeleted       AuditEvent = "account_deleted"
	EventAdminAccessDenied    AuditEvent = "admin_access_denied"
)

// CategoryOf returns the default category for a known action.
func CategoryOf(action string) EventCategory {
	switch AuditEvent(action) {
	case EventAccountStatusChanged, EventAccountDeleted:
		return CategoryAdmin
	case EventAdminAccessDenied:
		return CategorySecurity
	default:
		return CategoryOperations
	}
}

// Store persists audit events. Both listings are newest first;
// ListByUser returns at most MaxListLimit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Listing bounds shared by every Store implementation.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ClampLimit maps a requested page size onto [1, MaxListLimit]; zero or
// negative selects DefaultListLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
