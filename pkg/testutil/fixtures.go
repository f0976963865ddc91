package testutil

import (
	"time"

	"github.com/google/uuid"

	"veritas/internal/scan/models"
	id "veritas/pkg/domain"
)

// TestIDs provides convenient pre-generated IDs for tests.
// Use these for deterministic test data.
var TestIDs = struct {
	UserID1    id.UserID
	UserID2    id.UserID
	SessionID1 id.SessionID
	SessionID2 id.SessionID
}{
	UserID1:    id.UserID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	UserID2:    id.UserID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	SessionID1: id.SessionID(uuid.MustParse("eeee0000-0000-0000-0000-000000000001")),
	SessionID2: id.SessionID(uuid.MustParse("eeee0000-0000-0000-0000-000000000002")),
}

// RecordBuilder provides a fluent interface for building scan records.
type RecordBuilder struct {
	record *models.ScanRecord
}

// NewRecordBuilder creates a verified record owned by TestIDs.UserID1.
func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{
		record: &models.ScanRecord{
			ID:                 id.NewScanID(),
			UserID:             TestIDs.UserID1,
			UsernameScanned:    "dr_sarah_mitchell",
			ContentType:        "Medical Advice",
			Platform:           "Instagram",
			Status:             models.StatusVerified,
			ConfidenceScore:    95,
			CredentialVerified: true,
			ScannedAt:          time.Now().UTC(),
		},
	}
}

func (b *RecordBuilder) WithID(scanID id.ScanID) *RecordBuilder {
	b.record.ID = scanID
	return b
}

func (b *RecordBuilder) WithOwner(userID id.UserID) *RecordBuilder {
	b.record.UserID = userID
	return b
}

func (b *RecordBuilder) WithUsername(username string) *RecordBuilder {
	b.record.UsernameScanned = username
	return b
}

// Alert turns the record into an alert with the given type and message.
func (b *RecordBuilder) Alert(alertType models.AlertType, message string) *RecordBuilder {
	b.record.Status = models.StatusAlert
	b.record.AlertType = alertType
	b.record.AlertMessage = message
	b.record.CredentialVerified = false
	return b
}

func (b *RecordBuilder) WithStatus(status models.VerificationStatus) *RecordBuilder {
	b.record.Status = status
	return b
}

func (b *RecordBuilder) ScannedAt(t time.Time) *RecordBuilder {
	b.record.ScannedAt = t
	return b
}

func (b *RecordBuilder) Build() *models.ScanRecord {
	copyRecord := *b.record
	return &copyRecord
}

// NewTestItem returns a display item for controller tests.
func NewTestItem(itemID, username string) models.DisplayItem {
	return models.DisplayItem{
		ID:          id.ItemID(itemID),
		Username:    username,
		Bio:         "Board-certified physician sharing health tips",
		ContentType: "Medical Advice",
		Profession:  "doctor",
		Platform:    "Instagram",
	}
}
