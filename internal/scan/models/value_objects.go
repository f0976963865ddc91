package models

import (
	"fmt"
	"strings"

	"veritas/internal/sentinel"
)

// VerificationStatus is the five-value classification a content card can hold.
type VerificationStatus string

const (
	StatusPending    VerificationStatus = "pending"
	StatusScanning   VerificationStatus = "scanning"
	StatusVerified   VerificationStatus = "verified"
	StatusAlert      VerificationStatus = "alert"
	StatusUnverified VerificationStatus = "unverified"
)

// ValidStatuses is the single source of truth for all verification statuses.
var ValidStatuses = map[VerificationStatus]bool{
	StatusPending:    true,
	StatusScanning:   true,
	StatusVerified:   true,
	StatusAlert:      true,
	StatusUnverified: true,
}

// IsValid checks if the status is one of the supported enum values.
func (s VerificationStatus) IsValid() bool {
	return ValidStatuses[s]
}

// IsTerminal reports whether the status is a final classification. Only
// terminal statuses are ever persisted.
func (s VerificationStatus) IsTerminal() bool {
	return s == StatusVerified || s == StatusAlert || s == StatusUnverified
}

func (s VerificationStatus) String() string { return string(s) }

// ParseStatus parses a status from user or upstream input.
func ParseStatus(s string) (VerificationStatus, error) {
	status := VerificationStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("unknown verification status %q: %w", s, sentinel.ErrInvalidInput)
	}
	return status, nil
}

// AlertType categorises why an item was flagged.
type AlertType string

const (
	AlertCredentialIssue AlertType = "credential_issue"
	AlertSyntheticMedia  AlertType = "synthetic_media"
	AlertMisinformation  AlertType = "misinformation"
)

// IsValid checks if the alert type is one of the known categories.
func (t AlertType) IsValid() bool {
	return t == AlertCredentialIssue || t == AlertSyntheticMedia || t == AlertMisinformation
}
