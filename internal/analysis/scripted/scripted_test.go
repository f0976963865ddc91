package scripted

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/analysis"
	"veritas/internal/catalog"
	"veritas/internal/scan/models"
)

func TestAnalyze(t *testing.T) {
	a := New(catalog.Default(), 0)

	t.Run("returns the catalog outcome", func(t *testing.T) {
		res, err := a.Analyze(context.Background(), models.AnalysisRequest{Username: "celebrity_updates"})
		require.NoError(t, err)
		assert.Equal(t, models.StatusAlert, res.VerificationStatus)
		assert.True(t, res.DeepfakeDetected)
		assert.Contains(t, res.AlertMessage, "Deepfake Detected")
		assert.NoError(t, res.Validate())
	})

	t.Run("unknown handles are unverified", func(t *testing.T) {
		res, err := a.Analyze(context.Background(), models.AnalysisRequest{Username: "someone_else"})
		require.NoError(t, err)
		assert.Equal(t, models.StatusUnverified, res.VerificationStatus)
	})
}

func TestAnalyze_HonoursDeadline(t *testing.T) {
	a := New(catalog.Default(), time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.Analyze(ctx, models.AnalysisRequest{Username: "lifestyle_vibes"})
	assert.Equal(t, analysis.CategoryTimeout, analysis.CategoryOf(err))
}
