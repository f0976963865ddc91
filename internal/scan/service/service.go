// Package service implements the scan controller: per-user boards that turn
// completed dwells into analyses, and the scan history built from them.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"veritas/internal/analysis"
	prefmodels "veritas/internal/preferences/models"
	"veritas/internal/scan/dwell"
	"veritas/internal/scan/metrics"
	"veritas/internal/scan/models"
	"veritas/internal/scan/store"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/audit"
)

// Store persists scan records.
type Store interface {
	Create(ctx context.Context, record *models.ScanRecord) error
	ListByUser(ctx context.Context, userID id.UserID, limit int) ([]*models.ScanRecord, error)
	Delete(ctx context.Context, scanID id.ScanID, owner id.UserID) error
}

// Preferences loads and updates the persisted protection toggle.
type Preferences interface {
	Get(ctx context.Context, userID id.UserID) (*prefmodels.Preferences, error)
	Update(ctx context.Context, userID id.UserID, update prefmodels.Update) (*prefmodels.Preferences, error)
}

// RecordPublisher receives every record after it has been stored.
type RecordPublisher interface {
	Publish(ctx context.Context, record *models.ScanRecord) error
}

const (
	defaultIdleTTL     = 30 * time.Minute
	defaultEventBuffer = 64
)

type Option func(*Service)

// Service owns the open boards and the scan history.
type Service struct {
	store       Store
	analyzer    analysis.Analyzer
	preferences Preferences
	publisher   RecordPublisher
	items       []models.DisplayItem
	auditor     *audit.Logger
	metrics     *metrics.Metrics
	logger      *slog.Logger
	clock       dwell.Clock
	threshold   time.Duration
	tick        time.Duration
	idleTTL     time.Duration
	historySize int

	mu     sync.Mutex
	boards map[id.UserID]*Board
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditor records history deletions and protection changes.
func WithAuditor(a *audit.Logger) Option {
	return func(s *Service) { s.auditor = a }
}

// WithPublisher forwards stored records to the realtime feed.
func WithPublisher(p RecordPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the time source for dwell and idle tracking.
func WithClock(c dwell.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDwell sets the dwell threshold and progress tick.
func WithDwell(threshold, tick time.Duration) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.threshold = threshold
		}
		if tick > 0 {
			s.tick = tick
		}
	}
}

// WithIdleTTL sets how long a board without subscribers survives inactivity.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

// WithHistorySize sets the number of records returned by ListHistory.
func WithHistorySize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historySize = n
		}
	}
}

// New constructs the scan controller for the given catalog items.
func New(st Store, analyzer analysis.Analyzer, prefs Preferences, items []models.DisplayItem, opts ...Option) *Service {
	svc := &Service{
		store:       st,
		analyzer:    analyzer,
		preferences: prefs,
		items:       append([]models.DisplayItem(nil), items...),
		logger:      slog.Default(),
		clock:       dwell.SystemClock(),
		threshold:   dwell.DefaultThreshold,
		tick:        dwell.DefaultTick,
		idleTTL:     defaultIdleTTL,
		historySize: store.DefaultHistoryLimit,
		boards:      make(map[id.UserID]*Board),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Open returns the user's board, creating it on first use. Preferences are
// read once here; later toggles go through SetMonitoring.
func (s *Service) Open(ctx context.Context, userID id.UserID) (*Board, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing user context")
	}
	s.mu.Lock()
	if b, ok := s.boards[userID]; ok {
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()

	prefs, err := s.preferences.Get(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load preferences")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.boards[userID]; ok {
		return b, nil
	}
	b := newBoard(boardConfig{
		owner:      userID,
		items:      s.items,
		monitoring: prefs.ProtectionActive,
		analyzer:   s.analyzer,
		recorder:   s,
		clock:      s.clock,
		threshold:  s.threshold,
		tick:       s.tick,
		logger:     s.logger.With("user_id", userID.String()),
		metrics:    s.metrics,
	})
	s.boards[userID] = b
	if s.metrics != nil {
		s.metrics.ActiveBoards.Set(float64(len(s.boards)))
	}
	return b, nil
}

// Board returns the user's open board, if any.
func (s *Service) Board(userID id.UserID) (*Board, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[userID]
	return b, ok
}

// SetMonitoring persists the protection toggle and applies it to the open
// board. Item statuses are not reset.
func (s *Service) SetMonitoring(ctx context.Context, userID id.UserID, enabled bool) (*prefmodels.Preferences, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing user context")
	}
	prefs, err := s.preferences.Update(ctx, userID, prefmodels.Update{ProtectionActive: &enabled})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save protection setting")
	}
	if b, ok := s.Board(userID); ok {
		b.SetMonitoring(enabled)
	}
	s.auditor.Log(ctx, string(audit.EventProtectionChanged),
		"user_id", userID.String(),
		"reason", monitoringReason(enabled),
	)
	return prefs, nil
}

// PreferencesChanged applies a saved protection toggle to the user's open
// board. Register it as a preferences listener so changes made outside the
// scanner (settings page, another instance's API) reach the board.
func (s *Service) PreferencesChanged(_ context.Context, prefs *prefmodels.Preferences) {
	if prefs == nil {
		return
	}
	if b, ok := s.Board(prefs.UserID); ok {
		b.SetMonitoring(prefs.ProtectionActive)
	}
}

// CloseBoard tears down the user's board. Closing a board that is not open
// is a no-op.
func (s *Service) CloseBoard(userID id.UserID) {
	s.mu.Lock()
	b, ok := s.boards[userID]
	if ok {
		delete(s.boards, userID)
	}
	if s.metrics != nil {
		s.metrics.ActiveBoards.Set(float64(len(s.boards)))
	}
	s.mu.Unlock()
	if ok {
		b.Close()
	}
}

// SweepIdle closes boards that have no subscribers and have been idle
// longer than the idle TTL. Returns the number of boards closed.
func (s *Service) SweepIdle(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	var stale []*Board
	for userID, b := range s.boards {
		if b.Subscribers() > 0 || now.Sub(b.IdleSince()) < s.idleTTL {
			continue
		}
		delete(s.boards, userID)
		stale = append(stale, b)
	}
	if s.metrics != nil {
		s.metrics.ActiveBoards.Set(float64(len(s.boards)))
		s.metrics.BoardsEvicted.Add(float64(len(stale)))
	}
	s.mu.Unlock()

	for _, b := range stale {
		b.Close()
	}
	return len(stale), nil
}

// Close tears down every board.
func (s *Service) Close() {
	s.mu.Lock()
	boards := make([]*Board, 0, len(s.boards))
	for userID, b := range s.boards {
		boards = append(boards, b)
		delete(s.boards, userID)
	}
	s.mu.Unlock()
	for _, b := range boards {
		b.Close()
	}
}

// AppendRecord stores a completed scan and forwards it to the realtime
// feed. Feed failures are logged; the record stays stored.
func (s *Service) AppendRecord(ctx context.Context, owner id.UserID, item models.DisplayItem, result models.AnalysisResult) (*models.ScanRecord, error) {
	record, err := models.NewScanRecord(id.NewScanID(), owner, item, result, s.clock.Now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "refusing to record scan", "item_id", string(item.ID), "error", err)
		return nil, err
	}
	if err := s.store.Create(ctx, record); err != nil {
		if s.metrics != nil {
			s.metrics.PersistFailures.WithLabelValues("create").Inc()
		}
		s.logger.ErrorContext(ctx, "failed to persist scan record",
			"user_id", owner.String(),
			"scan_id", record.ID.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to save scan")
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, record); err != nil {
			s.logger.WarnContext(ctx, "failed to publish scan record",
				"scan_id", record.ID.String(),
				"error", err,
			)
		}
	}
	return record, nil
}

// ListHistory returns the user's most recent scans, newest first.
func (s *Service) ListHistory(ctx context.Context, userID id.UserID) ([]*models.ScanRecord, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing user context")
	}
	records, err := s.store.ListByUser(ctx, userID, s.historySize)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load scan history")
	}
	return records, nil
}

// DeleteScan removes one of the user's records. Records owned by someone
// else are reported as not found.
func (s *Service) DeleteScan(ctx context.Context, userID id.UserID, scanID id.ScanID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "missing user context")
	}
	if err := s.store.Delete(ctx, scanID, userID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "scan not found")
		}
		if s.metrics != nil {
			s.metrics.PersistFailures.WithLabelValues("delete").Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete scan")
	}
	s.auditor.Log(ctx, string(audit.EventScanDeleted),
		"user_id", userID.String(),
		"subject", scanID.String(),
	)
	return nil
}

func monitoringReason(enabled bool) string {
	if enabled {
		return "protection_on"
	}
	return "protection_off"
}
