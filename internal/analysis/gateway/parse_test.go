package gateway

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/scan/models"
	"veritas/pkg/platform/validation"
)

func TestParseContent(t *testing.T) {
	t.Run("fenced answer with fractional score", func(t *testing.T) {
		result, ok := parseContent("```json\n{\"verificationStatus\":\"Verified\",\"confidenceScore\":91.6,\"credentialVerified\":true}\n```")
		require.True(t, ok)
		assert.Equal(t, models.StatusVerified, result.VerificationStatus)
		assert.Equal(t, 92, result.ConfidenceScore)
		assert.Equal(t, []string{}, result.AnalysisDetails.RiskFactors)
	})

	t.Run("risk factors are capped", func(t *testing.T) {
		factors := make([]string, validation.MaxRiskFactors+5)
		for i := range factors {
			factors[i] = fmt.Sprintf("factor %d", i)
		}
		raw, err := json.Marshal(map[string]any{
			"verificationStatus": "alert",
			"alertType":          "misinformation",
			"confidenceScore":    80,
			"analysisDetails":    map[string]any{"riskFactors": factors},
		})
		require.NoError(t, err)

		result, ok := parseContent(string(raw))
		require.True(t, ok)
		assert.Len(t, result.AnalysisDetails.RiskFactors, validation.MaxRiskFactors)
		assert.Equal(t, "factor 0", result.AnalysisDetails.RiskFactors[0])
	})

	t.Run("non-terminal status falls back to incomplete", func(t *testing.T) {
		result, ok := parseContent(`{"verificationStatus":"scanning","confidenceScore":10}`)
		assert.False(t, ok)
		assert.Equal(t, models.IncompleteAnalysis(), result)
	})

	t.Run("prose answer falls back to incomplete", func(t *testing.T) {
		_, ok := parseContent("I think this account is fine.")
		assert.False(t, ok)
	})
}
