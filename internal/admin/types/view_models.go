package types

import (
	"time"

	id "veritas/pkg/domain"
)

// AdminScan is the cross-user view of a scan record. Admin-local so the
// admin package does not depend on scan internals.
type AdminScan struct {
	ID                 id.ScanID `json:"id"`
	UserID             id.UserID `json:"user_id"`
	UsernameScanned    string    `json:"username_scanned"`
	ContentType        string    `json:"content_type"`
	Platform           string    `json:"platform"`
	Status             string    `json:"verification_status"`
	AlertType          string    `json:"alert_type,omitempty"`
	AlertMessage       string    `json:"alert_message,omitempty"`
	ConfidenceScore    int       `json:"confidence_score"`
	DeepfakeDetected   bool      `json:"deepfake_detected"`
	CredentialVerified bool      `json:"credential_verified"`
	ScannedAt          time.Time `json:"scanned_at"`
}

// ScanFilter narrows the cross-user scan listing.
type ScanFilter struct {
	Search string
	Status string
}

// ScanCounts summarises stored scans by status.
type ScanCounts struct {
	Total      int `json:"total_scans"`
	Alerts     int `json:"alerts"`
	Verified   int `json:"verified"`
	Unverified int `json:"unverified"`
}
