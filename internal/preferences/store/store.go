// Package store persists per-user preferences.
//
// Get returns sentinel.ErrNotFound for users who never saved anything;
// callers fall back to models.Default.
package store

import (
	"context"

	"veritas/internal/preferences/models"
	id "veritas/pkg/domain"
)

type Store interface {
	Get(ctx context.Context, userID id.UserID) (*models.Preferences, error)
	Save(ctx context.Context, prefs *models.Preferences) error
}
