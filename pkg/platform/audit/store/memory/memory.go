// Package memory is an in-process audit store for tests and local runs.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	id "veritas/pkg/domain"
	audit "veritas/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]audit.Event, error) {
	return s.newest(audit.MaxListLimit, func(e audit.Event) bool { return e.UserID == userID }), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	return s.newest(audit.ClampLimit(limit), func(audit.Event) bool { return true }), nil
}

func (s *InMemoryStore) newest(limit int, keep func(audit.Event) bool) []audit.Event {
	s.mu.RLock()
	out := make([]audit.Event, 0, len(s.events))
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	// Stable on reversed insertion order keeps equal timestamps newest first.
	slices.Reverse(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
