// Package models defines the per-user protection preferences.
package models

import (
	"time"

	id "veritas/pkg/domain"
)

// Preferences are the persisted per-user settings. ProtectionActive drives
// the scanner's monitoring toggle and survives reloads until the user turns
// it off.
type Preferences struct {
	UserID               id.UserID `json:"user_id"`
	ProtectionActive     bool      `json:"protection_active"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Default returns the settings of a user who never changed anything:
// protection off, notifications on.
func Default(userID id.UserID) *Preferences {
	return &Preferences{
		UserID:               userID,
		ProtectionActive:     false,
		NotificationsEnabled: true,
	}
}

// AlertsWanted reports whether realtime alert notifications should be shown.
// Both protection and notifications must be on.
func (p *Preferences) AlertsWanted() bool {
	return p != nil && p.ProtectionActive && p.NotificationsEnabled
}

// Update is a partial change; nil fields are left as they are.
type Update struct {
	ProtectionActive     *bool `json:"protection_active"`
	NotificationsEnabled *bool `json:"notifications_enabled"`
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.ProtectionActive == nil && u.NotificationsEnabled == nil
}

// Apply returns a copy of p with u applied.
func (u Update) Apply(p Preferences, now time.Time) Preferences {
	if u.ProtectionActive != nil {
		p.ProtectionActive = *u.ProtectionActive
	}
	if u.NotificationsEnabled != nil {
		p.NotificationsEnabled = *u.NotificationsEnabled
	}
	p.UpdatedAt = now
	return p
}
