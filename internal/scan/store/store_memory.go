package store

import (
	"context"
	"sort"
	"sync"

	"veritas/internal/scan/models"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
)

// InMemoryStore keeps scan records in memory for tests and the demo mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.ScanID]*models.ScanRecord
}

// NewInMemory constructs an empty in-memory scan store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.ScanID]*models.ScanRecord)}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.ScanRecord) error {
	if record == nil {
		return sentinel.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	copyRecord := *record
	s.records[record.ID] = &copyRecord
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, scanID id.ScanID) (*models.ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[scanID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyRecord := *record
	return &copyRecord, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID, limit int) ([]*models.ScanRecord, error) {
	return s.collect(func(r *models.ScanRecord) bool {
		return r.UserID == userID
	}, clampLimit(limit, DefaultHistoryLimit)), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, filter models.RecordFilter, limit int) ([]*models.ScanRecord, error) {
	return s.collect(func(r *models.ScanRecord) bool {
		return filter.Matches(*r)
	}, clampLimit(limit, DefaultRecentLimit)), nil
}

// Delete removes a record owned by owner. A record owned by someone else is
// reported as not found so callers cannot probe for other users' IDs.
func (s *InMemoryStore) Delete(_ context.Context, scanID id.ScanID, owner id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[scanID]
	if !ok || record.UserID != owner {
		return sentinel.ErrNotFound
	}
	delete(s.records, scanID)
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c Counts
	for _, r := range s.records {
		c.Total++
		switch r.Status {
		case models.StatusAlert:
			c.Alerts++
		case models.StatusVerified:
			c.Verified++
		case models.StatusUnverified:
			c.Unverified++
		}
	}
	return c, nil
}

// collect copies matching records newest first, ties broken by ID for a stable order.
func (s *InMemoryStore) collect(keep func(*models.ScanRecord) bool, limit int) []*models.ScanRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ScanRecord, 0)
	for _, r := range s.records {
		if keep(r) {
			copyRecord := *r
			out = append(out, &copyRecord)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScannedAt.Equal(out[j].ScannedAt) {
			return out[i].ScannedAt.After(out[j].ScannedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
