package adapters

import (
	"context"

	"veritas/internal/admin/types"
	"veritas/internal/scan/models"
	"veritas/internal/scan/store"
)

// ScanContractStore is the part of the scan store admin reads from.
type ScanContractStore interface {
	ListRecent(ctx context.Context, filter models.RecordFilter, limit int) ([]*models.ScanRecord, error)
	Count(ctx context.Context) (store.Counts, error)
}

// ScanStoreAdapter adapts a scan store to admin's ScanReader interface.
type ScanStoreAdapter struct {
	store ScanContractStore
}

// NewScanStoreAdapter creates a new adapter wrapping a scan store.
func NewScanStoreAdapter(store ScanContractStore) *ScanStoreAdapter {
	return &ScanStoreAdapter{store: store}
}

// ListRecent returns the newest records across all users mapped to admin
// types. An unknown status in the filter is rejected with
// sentinel.ErrInvalidInput.
func (a *ScanStoreAdapter) ListRecent(ctx context.Context, filter types.ScanFilter, limit int) ([]*types.AdminScan, error) {
	f := models.RecordFilter{Search: filter.Search}
	if filter.Status != "" {
		status, err := models.ParseStatus(filter.Status)
		if err != nil {
			return nil, err
		}
		f.Status = status
	}
	records, err := a.store.ListRecent(ctx, f, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*types.AdminScan, len(records))
	for i, r := range records {
		out[i] = mapScan(r)
	}
	return out, nil
}

// Count returns scan totals mapped to admin types.
func (a *ScanStoreAdapter) Count(ctx context.Context) (types.ScanCounts, error) {
	c, err := a.store.Count(ctx)
	if err != nil {
		return types.ScanCounts{}, err
	}
	return types.ScanCounts{
		Total:      c.Total,
		Alerts:     c.Alerts,
		Verified:   c.Verified,
		Unverified: c.Unverified,
	}, nil
}

func mapScan(r *models.ScanRecord) *types.AdminScan {
	return &types.AdminScan{
		ID:                 r.ID,
		UserID:             r.UserID,
		UsernameScanned:    r.UsernameScanned,
		ContentType:        r.ContentType,
		Platform:           r.Platform,
		Status:             string(r.Status),
		AlertType:          string(r.AlertType),
		AlertMessage:       r.AlertMessage,
		ConfidenceScore:    r.ConfidenceScore,
		DeepfakeDetected:   r.DeepfakeDetected,
		CredentialVerified: r.CredentialVerified,
		ScannedAt:          r.ScannedAt,
	}
}
