package accounts

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"veritas/internal/admin/models"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
)

// InMemoryStore keeps the registry in memory for tests and the demo mode.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*models.FakeAccount
	byHandle map[string]id.AccountID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[id.AccountID]*models.FakeAccount),
		byHandle: make(map[string]id.AccountID),
	}
}

func (s *InMemoryStore) Report(_ context.Context, report models.Report, now time.Time) (*models.FakeAccount, error) {
	username := models.NormalizedUsername(report.Username)
	if username == "" || strings.TrimSpace(report.Reason) == "" {
		return nil, sentinel.ErrInvalidInput
	}
	key := models.HandleKey(username, report.Platform)

	s.mu.Lock()
	defer s.mu.Unlock()
	if accountID, ok := s.byHandle[key]; ok {
		a := s.accounts[accountID]
		a.ReportedCount++
		if a.Evidence == "" {
			a.Evidence = report.Evidence
		}
		if a.Status == models.AccountDismissed {
			a.Status = models.AccountPending
		}
		a.UpdatedAt = now
		cp := *a
		return &cp, nil
	}

	a := &models.FakeAccount{
		ID:            id.NewAccountID(),
		Username:      username,
		Platform:      strings.TrimSpace(report.Platform),
		Reason:        strings.TrimSpace(report.Reason),
		Evidence:      report.Evidence,
		ReportedCount: 1,
		Status:        models.AccountPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.accounts[a.ID] = a
	s.byHandle[key] = a.ID
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, accountID id.AccountID) (*models.FakeAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// List returns matching accounts, newest first.
func (s *InMemoryStore) List(_ context.Context, filter models.AccountFilter, limit int) ([]*models.FakeAccount, error) {
	s.mu.RLock()
	out := make([]*models.FakeAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		if filter.Matches(*a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, accountID id.AccountID, status models.AccountStatus, now time.Time) (*models.FakeAccount, error) {
	if !status.IsValid() {
		return nil, sentinel.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = now
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) Delete(_ context.Context, accountID id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byHandle, models.HandleKey(a.Username, a.Platform))
	delete(s.accounts, accountID)
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (models.AccountCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c models.AccountCounts
	for _, a := range s.accounts {
		switch a.Status {
		case models.AccountConfirmed:
			c.Confirmed++
		case models.AccountPending:
			c.Pending++
		case models.AccountDismissed:
			c.Dismissed++
		}
	}
	return c, nil
}
