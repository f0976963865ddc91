package analysis

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"veritas/internal/scan/models"
)

const (
	DefaultTimeout       = 15 * time.Second
	DefaultMaxConcurrent = 8
)

// Bounded limits an Analyzer to a fixed number of concurrent calls and a
// per-call deadline. Waiting for a slot counts against the deadline.
type Bounded struct {
	next    Analyzer
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewBounded wraps next. Non-positive limits fall back to the defaults.
func NewBounded(next Analyzer, timeout time.Duration, maxConcurrent int) *Bounded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Bounded{
		next:    next,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		timeout: timeout,
	}
}

func (b *Bounded) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.sem.Acquire(ctx, 1); err != nil {
		return models.AnalysisResult{}, classifyContext(err)
	}
	defer b.sem.Release(1)

	result, err := b.next.Analyze(ctx, req)
	if err != nil {
		if ctx.Err() != nil && CategoryOf(err) == CategoryInternal {
			return models.AnalysisResult{}, classifyContext(err)
		}
		return models.AnalysisResult{}, err
	}
	if err := result.Validate(); err != nil {
		return models.AnalysisResult{}, NewError(CategoryBadData, "invalid analysis result", err)
	}
	return result, nil
}

func classifyContext(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CategoryTimeout, "analysis deadline exceeded", err)
	}
	return NewError(CategoryInternal, "analysis cancelled", err)
}
