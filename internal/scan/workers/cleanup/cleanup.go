// Package cleanup closes scanner boards whose page went away without
// saying goodbye.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// BoardSweeper closes boards idle since before now minus its TTL.
type BoardSweeper interface {
	SweepIdle(ctx context.Context, now time.Time) (int, error)
}

// CleanupResult summarizes one cleanup run.
type CleanupResult struct {
	ClosedBoards int
}

// CleanupService periodically sweeps idle boards.
type CleanupService struct {
	boards   BoardSweeper
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// CleanupOption configures CleanupService.
type CleanupOption func(*CleanupService)

// WithCleanupInterval overrides the cleanup interval when greater than zero.
func WithCleanupInterval(interval time.Duration) CleanupOption {
	return func(s *CleanupService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithCleanupLogger overrides the logger used for cleanup errors.
func WithCleanupLogger(logger *slog.Logger) CleanupOption {
	return func(s *CleanupService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the time source passed to the sweeper.
func WithNow(now func() time.Time) CleanupOption {
	return func(s *CleanupService) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a CleanupService.
func New(boards BoardSweeper, opts ...CleanupOption) (*CleanupService, error) {
	if boards == nil {
		return nil, fmt.Errorf("board sweeper is required")
	}
	svc := &CleanupService{
		boards:   boards,
		interval: time.Minute,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "board cleanup failed", "error", err)
				continue
			}
			if res.ClosedBoards > 0 {
				s.logger.InfoContext(ctx, "closed idle boards", "count", res.ClosedBoards)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep.
func (s *CleanupService) RunOnce(ctx context.Context) (CleanupResult, error) {
	closed, err := s.boards.SweepIdle(ctx, s.now())
	if err != nil {
		return CleanupResult{}, fmt.Errorf("sweep idle boards: %w", err)
	}
	return CleanupResult{ClosedBoards: closed}, nil
}
