package notify

import (
	"context"
	"sync"
	"time"

	prefmodels "veritas/internal/preferences/models"
	"veritas/internal/scan/models"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
)

func alertRecord(owner id.UserID, username, message string) *models.ScanRecord {
	return &models.ScanRecord{
		ID:              id.NewScanID(),
		UserID:          owner,
		UsernameScanned: username,
		ContentType:     "medical_advice",
		Platform:        "instagram",
		Status:          models.StatusAlert,
		AlertType:       models.AlertCredentialIssue,
		AlertMessage:    message,
		ConfidenceScore: 91,
		ScannedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func verifiedRecord(owner id.UserID, username string) *models.ScanRecord {
	r := alertRecord(owner, username, "")
	r.Status = models.StatusVerified
	r.AlertType = ""
	return r
}

type stubPreferences struct {
	mu    sync.Mutex
	prefs map[id.UserID]*prefmodels.Preferences
}

func newStubPreferences() *stubPreferences {
	return &stubPreferences{prefs: make(map[id.UserID]*prefmodels.Preferences)}
}

func (s *stubPreferences) set(userID id.UserID, protection, notifications bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = &prefmodels.Preferences{
		UserID:               userID,
		ProtectionActive:     protection,
		NotificationsEnabled: notifications,
	}
}

func (s *stubPreferences) Get(_ context.Context, userID id.UserID) (*prefmodels.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}
