package models

import (
	"strings"
	"time"

	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
)

// ScanRecord is the persisted outcome of one completed analysis.
//
// Records are append-only: the application creates and deletes them but
// never updates one in place. A record is always owned by exactly one user
// and every query on it is scoped by UserID.
type ScanRecord struct {
	ID                 id.ScanID          `json:"id"`
	UserID             id.UserID          `json:"user_id"`
	UsernameScanned    string             `json:"username_scanned"`
	ContentType        string             `json:"content_type"`
	Platform           string             `json:"platform"`
	Status             VerificationStatus `json:"verification_status"`
	AlertType          AlertType          `json:"alert_type,omitempty"`
	AlertMessage       string             `json:"alert_message,omitempty"`
	ConfidenceScore    int                `json:"confidence_score"`
	DeepfakeDetected   bool               `json:"deepfake_detected"`
	CredentialVerified bool               `json:"credential_verified"`
	ScannedAt          time.Time          `json:"scanned_at"`
}

// NewScanRecord creates a ScanRecord from an analysis result with domain
// invariant checks. Transient statuses are rejected.
func NewScanRecord(scanID id.ScanID, userID id.UserID, item DisplayItem, result AnalysisResult, scannedAt time.Time) (*ScanRecord, error) {
	if scanID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "scan ID required")
	}
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user ID required")
	}
	if strings.TrimSpace(item.Username) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "scanned username required")
	}
	if !result.VerificationStatus.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "only terminal statuses can be recorded")
	}
	if result.ConfidenceScore < 0 || result.ConfidenceScore > 100 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "confidence score must be between 0 and 100")
	}
	if scannedAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "scan time required")
	}
	return &ScanRecord{
		ID:                 scanID,
		UserID:             userID,
		UsernameScanned:    item.Username,
		ContentType:        item.ContentType,
		Platform:           item.Platform,
		Status:             result.VerificationStatus,
		AlertType:          result.AlertType,
		AlertMessage:       result.AlertMessage,
		ConfidenceScore:    result.ConfidenceScore,
		DeepfakeDetected:   result.DeepfakeDetected,
		CredentialVerified: result.CredentialVerified,
		ScannedAt:          scannedAt,
	}, nil
}

// IsAlert reports whether the record should raise a realtime notification.
func (r ScanRecord) IsAlert() bool {
	return r.Status == StatusAlert
}

// RecordFilter narrows cross-user listings (admin review).
type RecordFilter struct {
	Search string             // case-insensitive substring of the scanned username or content type
	Status VerificationStatus // empty means any status
}

// Matches applies the filter in memory.
func (f RecordFilter) Matches(r ScanRecord) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(r.UsernameScanned), needle) ||
		strings.Contains(strings.ToLower(r.ContentType), needle)
}
