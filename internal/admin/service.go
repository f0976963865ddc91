package admin

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"veritas/internal/admin/models"
	"veritas/internal/admin/store/accounts"
	"veritas/internal/admin/types"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/audit"
	"veritas/pkg/requestcontext"
)

// ScanReader lists scan records across all users.
type ScanReader interface {
	ListRecent(ctx context.Context, filter types.ScanFilter, limit int) ([]*types.AdminScan, error)
	Count(ctx context.Context) (types.ScanCounts, error)
}

// AccountStore persists the fake-account registry.
type AccountStore interface {
	Report(ctx context.Context, report models.Report, now time.Time) (*models.FakeAccount, error)
	List(ctx context.Context, filter models.AccountFilter, limit int) ([]*models.FakeAccount, error)
	UpdateStatus(ctx context.Context, accountID id.AccountID, status models.AccountStatus, now time.Time) (*models.FakeAccount, error)
	Delete(ctx context.Context, accountID id.AccountID) error
	Count(ctx context.Context) (models.AccountCounts, error)
}

// RoleStore reads and changes user roles.
type RoleStore interface {
	HasRole(ctx context.Context, userID id.UserID, role string) (bool, error)
	Grant(ctx context.Context, userID id.UserID, role string) error
	Revoke(ctx context.Context, userID id.UserID, role string) error
}

// AuditReader lists recorded audit events.
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

const (
	defaultRoleCacheTTL = time.Minute
	defaultAuditLimit   = 50
)

// Service provides the admin review operations and the user-facing report.
type Service struct {
	scans    ScanReader
	accounts AccountStore
	roles    RoleStore
	events   AuditReader
	auditor  *audit.Logger
	logger   *slog.Logger
	roleTTL  time.Duration
	limit    int
	cache    *cache.Cache
}

type Option func(*Service)

// WithAuditor records account mutations and denied admin access.
func WithAuditor(a *audit.Logger) Option {
	return func(s *Service) { s.auditor = a }
}

// WithAuditReader exposes recent audit events to admins.
func WithAuditReader(r AuditReader) Option {
	return func(s *Service) { s.events = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRoleCacheTTL sets how long an admin lookup is trusted.
func WithRoleCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.roleTTL = ttl
		}
	}
}

// WithListLimit caps admin listings.
func WithListLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// NewService creates a new admin service.
func NewService(scans ScanReader, accountStore AccountStore, roles RoleStore, opts ...Option) *Service {
	s := &Service{
		scans:    scans,
		accounts: accountStore,
		roles:    roles,
		logger:   slog.Default(),
		roleTTL:  defaultRoleCacheTTL,
		limit:    accounts.DefaultListLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = cache.New(s.roleTTL, 2*s.roleTTL)
	return s
}

// Stats contains the dashboard totals.
type Stats struct {
	types.ScanCounts
	models.AccountCounts
	Timestamp time.Time `json:"timestamp"`
}

// IsAdmin reports whether userID holds the admin role. Answers are cached
// for the role cache TTL; lookup failures are not cached.
func (s *Service) IsAdmin(ctx context.Context, userID id.UserID) (bool, error) {
	if userID.IsNil() {
		return false, nil
	}
	key := userID.String()
	if v, ok := s.cache.Get(key); ok {
		return v.(bool), nil
	}
	ok, err := s.roles.HasRole(ctx, userID, models.RoleAdmin)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check role")
	}
	s.cache.SetDefault(key, ok)
	return ok, nil
}

// GrantAdmin gives userID the admin role and drops any cached answer.
func (s *Service) GrantAdmin(ctx context.Context, userID id.UserID) error {
	if err := s.roles.Grant(ctx, userID, models.RoleAdmin); err != nil {
		if errors.Is(err, sentinel.ErrInvalidInput) {
			return dErrors.New(dErrors.CodeValidation, "user id required")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant role")
	}
	s.cache.Delete(userID.String())
	return nil
}

// RevokeAdmin removes the admin role. Revoking a role the user does not
// hold reports not found.
func (s *Service) RevokeAdmin(ctx context.Context, userID id.UserID) error {
	if err := s.roles.Revoke(ctx, userID, models.RoleAdmin); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user is not an admin")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke role")
	}
	s.cache.Delete(userID.String())
	return nil
}

// GetStats returns scan and registry totals.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	scanCounts, err := s.scans.Count(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count scans")
	}
	accountCounts, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count accounts")
	}
	return &Stats{
		ScanCounts:    scanCounts,
		AccountCounts: accountCounts,
		Timestamp:     requestcontext.Now(ctx).UTC(),
	}, nil
}

// ListScans returns the newest scans across all users.
func (s *Service) ListScans(ctx context.Context, filter types.ScanFilter) ([]*types.AdminScan, error) {
	scans, err := s.scans.ListRecent(ctx, filter, s.limit)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidInput) {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown verification status")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list scans")
	}
	return scans, nil
}

// ListAccounts returns registry entries, newest first.
func (s *Service) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]*models.FakeAccount, error) {
	list, err := s.accounts.List(ctx, filter, s.limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list accounts")
	}
	return list, nil
}

// ReportAccount records a user's report of a suspected fake account.
func (s *Service) ReportAccount(ctx context.Context, reporter id.UserID, report models.Report) (*models.FakeAccount, error) {
	if reporter.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing user context")
	}
	account, err := s.accounts.Report(ctx, report, requestcontext.Now(ctx).UTC())
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidInput) {
			return nil, dErrors.New(dErrors.CodeValidation, "username and reason are required")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record report")
	}
	s.auditor.Log(ctx, string(audit.EventAccountReported),
		"user_id", reporter.String(),
		"subject", account.ID.String(),
		"reason", "reported_count="+strconv.Itoa(account.ReportedCount),
	)
	return account, nil
}

// UpdateAccountStatus records an admin review outcome.
func (s *Service) UpdateAccountStatus(ctx context.Context, actor id.UserID, accountID id.AccountID, status models.AccountStatus) (*models.FakeAccount, error) {
	if !status.IsReviewOutcome() {
		return nil, dErrors.New(dErrors.CodeValidation, "status must be confirmed or dismissed")
	}
	account, err := s.accounts.UpdateStatus(ctx, accountID, status, requestcontext.Now(ctx).UTC())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account")
	}
	s.auditor.Log(ctx, string(audit.EventAccountStatusChanged),
		"user_id", actor.String(),
		"subject", accountID.String(),
		"reason", string(status),
	)
	return account, nil
}

// DeleteAccount removes a registry entry.
func (s *Service) DeleteAccount(ctx context.Context, actor id.UserID, accountID id.AccountID) error {
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete account")
	}
	s.auditor.Log(ctx, string(audit.EventAccountDeleted),
		"user_id", actor.String(),
		"subject", accountID.String(),
	)
	return nil
}

// GetRecentAuditEvents returns recent audit events across all users.
func (s *Service) GetRecentAuditEvents(ctx context.Context, limit int) ([]audit.Event, error) {
	if s.events == nil {
		return []audit.Event{}, nil
	}
	if limit <= 0 || limit > s.limit {
		limit = defaultAuditLimit
	}
	events, err := s.events.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return events, nil
}

// RecordDenied audits a rejected admin request.
func (s *Service) RecordDenied(ctx context.Context, userID id.UserID, path string) {
	s.auditor.Log(ctx, string(audit.EventAdminAccessDenied),
		"user_id", userID.String(),
		"subject", path,
	)
}
