package store

import (
	"context"
	"fmt"
	"sync"

	"veritas/internal/preferences/models"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
)

// InMemoryStore keeps preferences for single-instance and test runs.
type InMemoryStore struct {
	mu    sync.RWMutex
	prefs map[id.UserID]models.Preferences
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{prefs: make(map[id.UserID]models.Preferences)}
}

func (s *InMemoryStore) Get(_ context.Context, userID id.UserID) (*models.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) Save(_ context.Context, prefs *models.Preferences) error {
	if prefs == nil || prefs.UserID.IsNil() {
		return fmt.Errorf("preferences require a user: %w", sentinel.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[prefs.UserID] = *prefs
	return nil
}
