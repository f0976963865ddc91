// Package store persists scan records.
//
// Error contract: methods return sentinel.ErrNotFound when the record does not
// exist (or is not owned by the caller) and wrap infrastructure failures with
// context. Services translate these into domain errors.
package store

import (
	"context"

	"veritas/internal/scan/models"
	id "veritas/pkg/domain"
)

// DefaultHistoryLimit is the number of records returned to the owner's history view.
const DefaultHistoryLimit = 50

// DefaultRecentLimit is the number of records returned to cross-user review listings.
const DefaultRecentLimit = 200

// Store is the persistence contract shared by the in-memory and Postgres backends.
type Store interface {
	Create(ctx context.Context, record *models.ScanRecord) error
	FindByID(ctx context.Context, scanID id.ScanID) (*models.ScanRecord, error)
	ListByUser(ctx context.Context, userID id.UserID, limit int) ([]*models.ScanRecord, error)
	ListRecent(ctx context.Context, filter models.RecordFilter, limit int) ([]*models.ScanRecord, error)
	Delete(ctx context.Context, scanID id.ScanID, owner id.UserID) error
	Count(ctx context.Context) (Counts, error)
}

// Counts summarises stored records by status.
type Counts struct {
	Total      int `json:"total_scans"`
	Alerts     int `json:"alerts"`
	Verified   int `json:"verified"`
	Unverified int `json:"unverified"`
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}
