package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/suite"

	"veritas/internal/analysis"
	"veritas/internal/scan/models"
	"veritas/pkg/platform/circuit"
)

const endpoint = "https://analysis.test/functions/v1/analyze-content"

type ClientSuite struct {
	suite.Suite
	transport *httpmock.MockTransport
	breaker   *circuit.Breaker
	client    *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.transport = httpmock.NewMockTransport()
	s.breaker = circuit.New("analysis-test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	s.client = New(Config{
		URL:        endpoint,
		APIKey:     "secret",
		HTTPClient: &http.Client{Transport: s.transport},
		Breaker:    s.breaker,
	})
}

func (s *ClientSuite) request() models.AnalysisRequest {
	return models.AnalysisRequest{Username: "tech_reviews_daily", Bio: "Honest tech reviews", ContentType: "YouTube Video", Platform: "Demo"}
}

func (s *ClientSuite) TestSuccess() {
	s.transport.RegisterResponder(http.MethodPost, endpoint, func(req *http.Request) (*http.Response, error) {
		s.Equal("Bearer secret", req.Header.Get("Authorization"))
		var body models.AnalysisRequest
		s.Require().NoError(json.NewDecoder(req.Body).Decode(&body))
		s.Equal("tech_reviews_daily", body.Username)
		s.Equal("Demo", body.Platform)
		return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
			"verificationStatus": "verified",
			"confidenceScore":    92,
			"deepfakeDetected":   false,
			"credentialVerified": true,
			"analysisDetails": map[string]any{
				"credentialCheck": "ok", "contentAnalysis": "ok", "riskFactors": []string{},
			},
		})
	})

	result, err := s.client.Analyze(context.Background(), s.request())
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, result.VerificationStatus)
	s.Equal(92, result.ConfidenceScore)
	s.True(result.CredentialVerified)
	s.Equal(1, s.transport.GetTotalCallCount())
}

func (s *ClientSuite) TestStatusMapping() {
	cases := []struct {
		status   int
		body     string
		category analysis.Category
	}{
		{http.StatusTooManyRequests, `{"error":"Rate limit exceeded. Please try again later."}`, analysis.CategoryRateLimited},
		{http.StatusPaymentRequired, `{"error":"AI credits exhausted."}`, analysis.CategoryCreditsExhausted},
		{http.StatusInternalServerError, `{"error":"AI Gateway error: 500"}`, analysis.CategoryOutage},
		{http.StatusBadRequest, `nope`, analysis.CategoryBadData},
		{http.StatusGatewayTimeout, ``, analysis.CategoryTimeout},
	}
	for _, tc := range cases {
		s.Run(http.StatusText(tc.status), func() {
			s.SetupTest()
			s.transport.RegisterResponder(http.MethodPost, endpoint, httpmock.NewStringResponder(tc.status, tc.body))

			_, err := s.client.Analyze(context.Background(), s.request())
			s.Require().Error(err)
			s.Equal(tc.category, analysis.CategoryOf(err))

			var ae *analysis.Error
			s.Require().True(errors.As(err, &ae))
			s.Equal(tc.status, ae.StatusCode)
		})
	}
}

func (s *ClientSuite) TestMalformedPayloads() {
	for name, body := range map[string]string{
		"not json":         `<html>oops</html>`,
		"transient status": `{"verificationStatus":"scanning","confidenceScore":10}`,
		"bad confidence":   `{"verificationStatus":"alert","confidenceScore":400}`,
	} {
		s.Run(name, func() {
			s.SetupTest()
			s.transport.RegisterResponder(http.MethodPost, endpoint, httpmock.NewStringResponder(http.StatusOK, body))

			_, err := s.client.Analyze(context.Background(), s.request())
			s.Equal(analysis.CategoryBadData, analysis.CategoryOf(err))
		})
	}
}

func (s *ClientSuite) TestTransportError() {
	s.transport.RegisterResponder(http.MethodPost, endpoint, httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := s.client.Analyze(context.Background(), s.request())
	s.Equal(analysis.CategoryOutage, analysis.CategoryOf(err))
}

func (s *ClientSuite) TestBreakerFailsFast() {
	s.transport.RegisterResponder(http.MethodPost, endpoint, httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

	for range 2 {
		_, err := s.client.Analyze(context.Background(), s.request())
		s.Equal(analysis.CategoryOutage, analysis.CategoryOf(err))
	}
	s.Equal(circuit.StateOpen, s.breaker.State())

	_, err := s.client.Analyze(context.Background(), s.request())
	s.Equal(analysis.CategoryCircuitOpen, analysis.CategoryOf(err))
	s.Equal(2, s.transport.GetTotalCallCount(), "open circuit must not reach the endpoint")
}

func (s *ClientSuite) TestBadDataDoesNotTripBreaker() {
	s.transport.RegisterResponder(http.MethodPost, endpoint, httpmock.NewStringResponder(http.StatusOK, `garbage`))

	for range 5 {
		_, _ = s.client.Analyze(context.Background(), s.request())
	}
	s.Equal(circuit.StateClosed, s.breaker.State())
}
