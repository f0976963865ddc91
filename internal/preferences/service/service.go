// Package service reads and updates per-user preferences and notifies
// listeners of every change.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"veritas/internal/preferences/models"
	"veritas/internal/preferences/store"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/audit"
	keyed "veritas/pkg/platform/sync"
	"veritas/pkg/requestcontext"
)

// Listener is called after a change has been saved.
type Listener func(ctx context.Context, prefs *models.Preferences)

type Service struct {
	store   store.Store
	auditor *audit.Logger
	logger  *slog.Logger
	locks   *keyed.ShardedMutex

	mu        sync.RWMutex
	listeners []Listener
}

type Option func(*Service)

func WithAuditor(a *audit.Logger) Option {
	return func(s *Service) { s.auditor = a }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, logger: slog.Default(), locks: keyed.NewShardedMutex()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers a listener for saved changes.
func (s *Service) OnChange(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Get returns the stored preferences, or the defaults for a user who never
// saved any.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.Preferences, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing user context")
	}
	prefs, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Default(userID), nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load preferences")
	}
	return prefs, nil
}

// Update applies a partial change and saves it. Concurrent updates for one
// user are applied one at a time so neither field change is lost.
func (s *Service) Update(ctx context.Context, userID id.UserID, update models.Update) (*models.Preferences, error) {
	if update.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "no preference to update")
	}

	var next models.Preferences
	err := s.locks.Do(userID.String(), func() error {
		current, err := s.Get(ctx, userID)
		if err != nil {
			return err
		}
		next = update.Apply(*current, requestcontext.Now(ctx).UTC())
		if err := s.store.Save(ctx, &next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save preferences")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, string(audit.EventPreferencesUpdated),
		"user_id", userID.String(),
		"reason", "protection_active="+strconv.FormatBool(next.ProtectionActive)+
			" notifications_enabled="+strconv.FormatBool(next.NotificationsEnabled),
	)

	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l(ctx, &next)
	}
	return &next, nil
}
