// Package analysis defines the port to the content-analysis gateway and the
// failure taxonomy shared by its adapters.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"veritas/internal/scan/models"
	dErrors "veritas/pkg/domain-errors"
)

// Analyzer classifies content metadata.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	return f(ctx, req)
}

// Category is the normalized failure taxonomy for analysis calls.
type Category string

const (
	CategoryTimeout          Category = "timeout"
	CategoryRateLimited      Category = "rate_limited"
	CategoryCreditsExhausted Category = "credits_exhausted"
	CategoryOutage           Category = "outage"
	CategoryBadData          Category = "bad_data"
	CategoryCircuitOpen      Category = "circuit_open"
	CategoryInternal         Category = "internal"
)

// Error is an analysis failure with its category.
type Error struct {
	Category   Category
	StatusCode int // upstream HTTP status, when there was one
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("analysis [%s]: %s", e.Category, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a categorized analysis error.
func NewError(category Category, message string, err error) *Error {
	return &Error{Category: category, Message: message, Err: err}
}

// CategoryOf returns the category of err, or CategoryInternal for foreign errors.
func CategoryOf(err error) Category {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	return CategoryInternal
}

// ToDomain translates an analysis failure into a domain error for HTTP callers.
func ToDomain(err error) error {
	if err == nil {
		return nil
	}
	var code dErrors.Code
	msg := "analysis failed"
	switch CategoryOf(err) {
	case CategoryTimeout:
		code, msg = dErrors.CodeTimeout, "analysis timed out"
	case CategoryRateLimited:
		code, msg = dErrors.CodeRateLimited, "Rate limit exceeded. Please try again later."
	case CategoryCreditsExhausted:
		code, msg = dErrors.CodeCreditsExhausted, "AI credits exhausted. Please add credits to continue."
	case CategoryOutage, CategoryCircuitOpen:
		code, msg = dErrors.CodeUnavailable, "analysis service unavailable"
	case CategoryBadData:
		code, msg = dErrors.CodeBadUpstream, "analysis service returned an invalid response"
	default:
		code = dErrors.CodeInternal
	}
	return dErrors.Wrap(err, code, msg)
}
