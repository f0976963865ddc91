package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/scan/models"
	dErrors "veritas/pkg/domain-errors"
)

func TestToDomain(t *testing.T) {
	cases := map[Category]dErrors.Code{
		CategoryTimeout:          dErrors.CodeTimeout,
		CategoryRateLimited:      dErrors.CodeRateLimited,
		CategoryCreditsExhausted: dErrors.CodeCreditsExhausted,
		CategoryOutage:           dErrors.CodeUnavailable,
		CategoryCircuitOpen:      dErrors.CodeUnavailable,
		CategoryBadData:          dErrors.CodeBadUpstream,
		CategoryInternal:         dErrors.CodeInternal,
	}
	for cat, code := range cases {
		err := ToDomain(NewError(cat, "x", nil))
		assert.True(t, dErrors.HasCode(err, code), "category %s", cat)
	}
	assert.Nil(t, ToDomain(nil))
	assert.Equal(t, CategoryTimeout, CategoryOf(context.DeadlineExceeded))
	assert.Equal(t, CategoryInternal, CategoryOf(errors.New("boom")))
}

func TestError_Message(t *testing.T) {
	err := &Error{Category: CategoryRateLimited, StatusCode: 429, Message: "upstream", Err: errors.New("slow down")}
	assert.Equal(t, "analysis [rate_limited]: upstream (status 429): slow down", err.Error())
}

func TestBounded(t *testing.T) {
	verified := models.AnalysisResult{VerificationStatus: models.StatusVerified, ConfidenceScore: 92}

	t.Run("passes results through", func(t *testing.T) {
		b := NewBounded(AnalyzerFunc(func(context.Context, models.AnalysisRequest) (models.AnalysisResult, error) {
			return verified, nil
		}), time.Second, 1)

		got, err := b.Analyze(context.Background(), models.AnalysisRequest{Username: "a"})
		require.NoError(t, err)
		assert.Equal(t, verified, got)
	})

	t.Run("slow analyzers time out", func(t *testing.T) {
		b := NewBounded(AnalyzerFunc(func(ctx context.Context, _ models.AnalysisRequest) (models.AnalysisResult, error) {
			<-ctx.Done()
			return models.AnalysisResult{}, ctx.Err()
		}), 20*time.Millisecond, 1)

		_, err := b.Analyze(context.Background(), models.AnalysisRequest{})
		assert.Equal(t, CategoryTimeout, CategoryOf(err))
	})

	t.Run("rejects non-terminal results", func(t *testing.T) {
		b := NewBounded(AnalyzerFunc(func(context.Context, models.AnalysisRequest) (models.AnalysisResult, error) {
			return models.AnalysisResult{VerificationStatus: models.StatusScanning}, nil
		}), time.Second, 1)

		_, err := b.Analyze(context.Background(), models.AnalysisRequest{})
		assert.Equal(t, CategoryBadData, CategoryOf(err))
	})

	t.Run("limits concurrency", func(t *testing.T) {
		var inFlight, peak atomic.Int32
		release := make(chan struct{})
		b := NewBounded(AnalyzerFunc(func(context.Context, models.AnalysisRequest) (models.AnalysisResult, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			inFlight.Add(-1)
			return verified, nil
		}), time.Second, 2)

		done := make(chan struct{})
		for range 5 {
			go func() {
				_, _ = b.Analyze(context.Background(), models.AnalysisRequest{})
				done <- struct{}{}
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		for range 5 {
			<-done
		}
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})
}
