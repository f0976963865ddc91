package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"veritas/internal/analysis"
	"veritas/internal/scan/models"
)

// fakeGateway is an OpenAI-compatible chat-completions endpoint.
type fakeGateway struct {
	status  int
	content string
	body    string
	calls   atomic.Int32
	lastReq map[string]any
	lastKey string
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	f.lastKey = r.Header.Get("Authorization")
	_ = json.NewDecoder(r.Body).Decode(&f.lastReq)
	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 && f.status != http.StatusOK {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   DefaultModel,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": f.content},
		}},
	})
}

type GatewaySuite struct {
	suite.Suite
	fake     *fakeGateway
	server   *httptest.Server
	analyzer *LLMAnalyzer
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.fake = &fakeGateway{}
	s.server = httptest.NewServer(s.fake)
	s.analyzer = New(Config{BaseURL: s.server.URL + "/v1", APIKey: "gw-key"})
}

func (s *GatewaySuite) TearDownTest() {
	s.server.Close()
}

func (s *GatewaySuite) request() models.AnalysisRequest {
	return models.AnalysisRequest{Username: "crypto_guru_official", Bio: "Make $10k/day", ContentType: "YouTube Video", Platform: "Demo"}
}

func (s *GatewaySuite) TestParsesFencedAnswer() {
	s.fake.content = "```json\n" + `{
		"verificationStatus": "alert",
		"alertType": "misinformation",
		"alertMessage": "Scam Warning: unrealistic financial claims",
		"confidenceScore": 87.6,
		"deepfakeDetected": false,
		"credentialVerified": false,
		"analysisDetails": {"credentialCheck": "Registry Not Found", "contentAnalysis": "get-rich-quick", "riskFactors": ["financial claims"]}
	}` + "\n```"

	result, err := s.analyzer.Analyze(context.Background(), s.request())
	s.Require().NoError(err)
	s.Equal(models.StatusAlert, result.VerificationStatus)
	s.Equal(models.AlertMisinformation, result.AlertType)
	s.Equal(88, result.ConfidenceScore)
	s.Equal([]string{"financial claims"}, result.AnalysisDetails.RiskFactors)

	s.Equal("Bearer gw-key", s.fake.lastKey)
	s.Equal(DefaultModel, s.fake.lastReq["model"])
	msgs := s.fake.lastReq["messages"].([]any)
	s.Require().Len(msgs, 2)
	user := msgs[1].(map[string]any)["content"].(string)
	s.Contains(user, "Username: @crypto_guru_official")
	s.Contains(user, "Platform: Demo")
	s.Contains(user, "No image provided")
}

func (s *GatewaySuite) TestUnparseableAnswerFallsBack() {
	for _, content := range []string{
		"I think this account looks fine.",
		`{"verificationStatus": "maybe", "confidenceScore": 10}`,
	} {
		s.fake.content = content
		result, err := s.analyzer.Analyze(context.Background(), s.request())
		s.Require().NoError(err)
		s.Equal(models.IncompleteAnalysis(), result)
	}
}

func (s *GatewaySuite) TestNullAlertFieldsAndUnknownType() {
	s.fake.content = `{"verificationStatus":"verified","alertType":null,"alertMessage":null,"confidenceScore":90,"deepfakeDetected":false,"credentialVerified":true,"analysisDetails":{"credentialCheck":"ok","contentAnalysis":"ok","riskFactors":null}}`
	result, err := s.analyzer.Analyze(context.Background(), s.request())
	s.Require().NoError(err)
	s.Empty(result.AlertType)
	s.NotNil(result.AnalysisDetails.RiskFactors)

	s.fake.content = `{"verificationStatus":"alert","alertType":"spam","confidenceScore":70}`
	result, err = s.analyzer.Analyze(context.Background(), s.request())
	s.Require().NoError(err)
	s.Empty(result.AlertType)
}

func (s *GatewaySuite) TestUpstreamStatusMapping() {
	cases := map[int]analysis.Category{
		http.StatusTooManyRequests:     analysis.CategoryRateLimited,
		http.StatusPaymentRequired:     analysis.CategoryCreditsExhausted,
		http.StatusInternalServerError: analysis.CategoryOutage,
	}
	for status, category := range cases {
		s.fake.status = status
		s.fake.body = `{"error":{"message":"upstream says no","type":"error"}}`
		_, err := s.analyzer.Analyze(context.Background(), s.request())
		s.Equal(category, analysis.CategoryOf(err), "status %d", status)
	}
}

func (s *GatewaySuite) TestEmptyChoicesIsBadData() {
	s.fake.content = ""
	_, err := s.analyzer.Analyze(context.Background(), s.request())
	s.Equal(analysis.CategoryBadData, analysis.CategoryOf(err))
}

func (s *GatewaySuite) TestHandler() {
	s.Run("returns the analysis", func() {
		s.fake.status = 0
		s.fake.content = `{"verificationStatus":"verified","confidenceScore":92,"deepfakeDetected":false,"credentialVerified":true,"analysisDetails":{"credentialCheck":"ok","contentAnalysis":"ok","riskFactors":[]}}`
		rec := s.serve(`{"username":"tech_reviews_daily","bio":"Honest tech reviews","contentType":"YouTube Video"}`)

		s.Equal(http.StatusOK, rec.Code)
		s.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))
		var got models.AnalysisResult
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.Equal(models.StatusVerified, got.VerificationStatus)
		s.Equal(92, got.ConfidenceScore)
	})

	s.Run("maps rate limits to 429", func() {
		s.fake.status = http.StatusTooManyRequests
		rec := s.serve(`{"username":"a","bio":"b","contentType":"c"}`)
		s.Equal(http.StatusTooManyRequests, rec.Code)
		s.Contains(rec.Body.String(), "Rate limit exceeded")
	})

	s.Run("maps exhausted credits to 402", func() {
		s.fake.status = http.StatusPaymentRequired
		rec := s.serve(`{"username":"a","bio":"b","contentType":"c"}`)
		s.Equal(http.StatusPaymentRequired, rec.Code)
		s.Contains(rec.Body.String(), "credits exhausted")
	})

	s.Run("other failures are 500 with an error field", func() {
		s.fake.status = http.StatusBadGateway
		rec := s.serve(`{"username":"a","bio":"b","contentType":"c"}`)
		s.Equal(http.StatusInternalServerError, rec.Code)
		var body map[string]string
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.NotEmpty(body["error"])
	})

	s.Run("rejects requests without a username", func() {
		rec := s.serve(`{"contentType":"c"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *GatewaySuite) serve(body string) *httptest.ResponseRecorder {
	h := NewHandler(s.analyzer, discardLogger())
	req := httptest.NewRequest(http.MethodPost, "/functions/analyze-content", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handleAnalyze(rec, req)
	return rec
}
