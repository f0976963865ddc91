package gateway

import (
	"encoding/json"
	"math"
	"strings"

	"veritas/internal/scan/models"
	"veritas/pkg/platform/validation"
)

// llmResult mirrors AnalysisResult but tolerates fractional scores.
type llmResult struct {
	VerificationStatus models.VerificationStatus `json:"verificationStatus"`
	AlertType          *string                   `json:"alertType"`
	AlertMessage       *string                   `json:"alertMessage"`
	ConfidenceScore    float64                   `json:"confidenceScore"`
	DeepfakeDetected   bool                      `json:"deepfakeDetected"`
	CredentialVerified bool                      `json:"credentialVerified"`
	AnalysisDetails    models.AnalysisDetails    `json:"analysisDetails"`
}

// stripFences removes a surrounding markdown code fence.
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseContent turns the model's answer into a result. The second return
// value is false when the answer was unusable and the incomplete-analysis
// result was substituted.
func parseContent(content string) (models.AnalysisResult, bool) {
	var raw llmResult
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		return models.IncompleteAnalysis(), false
	}

	result := models.AnalysisResult{
		VerificationStatus: models.VerificationStatus(strings.ToLower(string(raw.VerificationStatus))),
		ConfidenceScore:    int(math.Round(raw.ConfidenceScore)),
		DeepfakeDetected:   raw.DeepfakeDetected,
		CredentialVerified: raw.CredentialVerified,
		AnalysisDetails:    raw.AnalysisDetails,
	}
	if raw.AlertType != nil {
		if t := models.AlertType(*raw.AlertType); t.IsValid() {
			result.AlertType = t
		}
	}
	if raw.AlertMessage != nil {
		result.AlertMessage = strings.TrimSpace(*raw.AlertMessage)
	}
	if result.AnalysisDetails.RiskFactors == nil {
		result.AnalysisDetails.RiskFactors = []string{}
	}
	if len(result.AnalysisDetails.RiskFactors) > validation.MaxRiskFactors {
		result.AnalysisDetails.RiskFactors = result.AnalysisDetails.RiskFactors[:validation.MaxRiskFactors]
	}
	if err := result.Validate(); err != nil {
		return models.IncompleteAnalysis(), false
	}
	return result, true
}
