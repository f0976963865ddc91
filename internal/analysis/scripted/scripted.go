// Package scripted answers analysis requests from the catalog's canned
// outcomes. It backs the offline demo mode.
package scripted

import (
	"context"
	"time"

	"veritas/internal/analysis"
	"veritas/internal/catalog"
	"veritas/internal/scan/models"
)

// DefaultLatency matches the pause the demo shows before a result.
const DefaultLatency = 2 * time.Second

// Analyzer is an analysis.Analyzer with scripted results.
type Analyzer struct {
	catalog *catalog.Catalog
	latency time.Duration
}

// New creates a scripted analyzer. A zero latency answers immediately.
func New(c *catalog.Catalog, latency time.Duration) *Analyzer {
	return &Analyzer{catalog: c, latency: latency}
}

// Analyze returns the catalog outcome for the handle. Handles without one
// are unverified.
func (a *Analyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	if a.latency > 0 {
		t := time.NewTimer(a.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return models.AnalysisResult{}, analysis.NewError(analysis.CategoryTimeout, "scripted analysis interrupted", ctx.Err())
		case <-t.C:
		}
	}

	exp, ok := a.catalog.Expected(req.Username)
	if !ok {
		return models.AnalysisResult{
			VerificationStatus: models.StatusUnverified,
			ConfidenceScore:    50,
			AnalysisDetails: models.AnalysisDetails{
				CredentialCheck: "Registry Not Found",
				ContentAnalysis: "No scripted outcome for this handle",
				RiskFactors:     []string{},
			},
		}, nil
	}

	result := models.AnalysisResult{
		VerificationStatus: exp.Status,
		AlertType:          exp.AlertType,
		AlertMessage:       exp.AlertMessage,
		ConfidenceScore:    exp.Confidence,
		DeepfakeDetected:   exp.DeepfakeDetected,
		CredentialVerified: exp.CredentialVerified,
		AnalysisDetails: models.AnalysisDetails{
			CredentialCheck: "Scripted demo outcome",
			ContentAnalysis: "Scripted demo outcome",
			RiskFactors:     []string{},
		},
	}
	if exp.Status == models.StatusAlert && exp.AlertType != "" {
		result.AnalysisDetails.RiskFactors = []string{string(exp.AlertType)}
	}
	return result, nil
}

var _ analysis.Analyzer = (*Analyzer)(nil)
