// Package accounts persists the known-fake-account registry.
//
// Error contract: methods return sentinel.ErrNotFound for unknown ids and
// sentinel.ErrInvalidInput for unusable input; infrastructure failures are
// wrapped with context.
package accounts

import (
	"context"
	"time"

	"veritas/internal/admin/models"
	id "veritas/pkg/domain"
)

// DefaultListLimit caps admin listings.
const DefaultListLimit = 200

// Store is the contract shared by the in-memory and Postgres backends.
type Store interface {
	// Report records a report, creating the account or bumping its count.
	// A new report reopens a dismissed account.
	Report(ctx context.Context, report models.Report, now time.Time) (*models.FakeAccount, error)
	FindByID(ctx context.Context, accountID id.AccountID) (*models.FakeAccount, error)
	List(ctx context.Context, filter models.AccountFilter, limit int) ([]*models.FakeAccount, error)
	UpdateStatus(ctx context.Context, accountID id.AccountID, status models.AccountStatus, now time.Time) (*models.FakeAccount, error)
	Delete(ctx context.Context, accountID id.AccountID) error
	Count(ctx context.Context) (models.AccountCounts, error)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
