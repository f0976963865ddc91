package models

import (
	"fmt"
	"strings"

	"veritas/internal/sentinel"
	"veritas/pkg/platform/validation"
)

// AnalysisRequest is the content metadata sent to the analysis gateway.
type AnalysisRequest struct {
	Username    string `json:"username"`
	Bio         string `json:"bio"`
	ContentType string `json:"contentType"`
	Platform    string `json:"platform,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// Normalize trims whitespace and a leading '@' from the handle.
func (r *AnalysisRequest) Normalize() {
	if r == nil {
		return
	}
	r.Username = strings.TrimPrefix(strings.TrimSpace(r.Username), "@")
	r.Bio = strings.TrimSpace(r.Bio)
	r.ContentType = strings.TrimSpace(r.ContentType)
	r.Platform = strings.TrimSpace(r.Platform)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
}

// Validate checks that the request is well-formed.
func (r *AnalysisRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("request is required: %w", sentinel.ErrBadRequest)
	}
	if r.Username == "" {
		return fmt.Errorf("username is required: %w", sentinel.ErrInvalidInput)
	}
	if r.ContentType == "" {
		return fmt.Errorf("contentType is required: %w", sentinel.ErrInvalidInput)
	}
	for _, err := range []error{
		validation.CheckStringLength("username", r.Username, validation.MaxUsernameLength),
		validation.CheckStringLength("bio", r.Bio, validation.MaxBioLength),
		validation.CheckStringLength("platform", r.Platform, validation.MaxPlatformLength),
		validation.CheckStringLength("imageUrl", r.ImageURL, validation.MaxURLLength),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// AnalysisDetails explains a classification.
type AnalysisDetails struct {
	CredentialCheck string   `json:"credentialCheck"`
	ContentAnalysis string   `json:"contentAnalysis"`
	RiskFactors     []string `json:"riskFactors"`
}

// AnalysisResult is the classification returned by the analysis gateway.
type AnalysisResult struct {
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	AlertType          AlertType          `json:"alertType,omitempty"`
	AlertMessage       string             `json:"alertMessage,omitempty"`
	ConfidenceScore    int                `json:"confidenceScore"`
	DeepfakeDetected   bool               `json:"deepfakeDetected"`
	CredentialVerified bool               `json:"credentialVerified"`
	AnalysisDetails    AnalysisDetails    `json:"analysisDetails"`
}

// Validate rejects results the scan controller cannot apply.
func (r AnalysisResult) Validate() error {
	if !r.VerificationStatus.IsTerminal() {
		return fmt.Errorf("verificationStatus %q is not a classification: %w", r.VerificationStatus, sentinel.ErrInvalidInput)
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 100 {
		return fmt.Errorf("confidenceScore %d out of range: %w", r.ConfidenceScore, sentinel.ErrInvalidInput)
	}
	return nil
}

// IncompleteAnalysis is returned when the model's answer cannot be parsed.
func IncompleteAnalysis() AnalysisResult {
	return AnalysisResult{
		VerificationStatus: StatusUnverified,
		ConfidenceScore:    50,
		AnalysisDetails: AnalysisDetails{
			CredentialCheck: "Analysis incomplete",
			ContentAnalysis: "Could not complete full analysis",
			RiskFactors:     []string{"Analysis parsing error"},
		},
	}
}
