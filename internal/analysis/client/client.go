// Package client calls a remote analysis endpoint that speaks the
// analyze-content JSON contract.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"veritas/internal/analysis"
	"veritas/internal/platform/tracer"
	"veritas/internal/scan/models"
	"veritas/pkg/platform/circuit"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 1 << 20

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the client.
type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Breaker    *circuit.Breaker
	Tracer     tracer.Tracer
	Logger     *slog.Logger
}

// Client is an analysis.Analyzer backed by an HTTP endpoint.
type Client struct {
	url     string
	apiKey  string
	http    HTTPDoer
	breaker *circuit.Breaker
	tracer  tracer.Tracer
	logger  *slog.Logger
}

// New creates a client. A missing breaker, tracer or logger gets a default.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = analysis.DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = circuit.New("analysis")
	}
	tr := cfg.Tracer
	if tr == nil {
		tr = tracer.NewNoop()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		breaker: breaker,
		tracer:  tr,
		logger:  logger,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// Analyze posts the request and decodes the classification.
func (c *Client) Analyze(ctx context.Context, req models.AnalysisRequest) (result models.AnalysisResult, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanAnalyzeRemote,
		tracer.String(tracer.AttrHandle, tracer.HashHandle(req.Username)),
		tracer.String(tracer.AttrContentType, req.ContentType),
	)
	defer func() {
		if err != nil {
			span.SetAttributes(tracer.String(tracer.AttrCategory, string(analysis.CategoryOf(err))))
		} else {
			span.SetAttributes(tracer.String(tracer.AttrStatus, string(result.VerificationStatus)))
		}
		span.End(err)
	}()

	if !c.breaker.Allow() {
		return models.AnalysisResult{}, analysis.NewError(analysis.CategoryCircuitOpen, "analysis circuit open", nil)
	}

	result, err = c.call(ctx, req)
	c.record(ctx, err)
	return result, err
}

func (c *Client) call(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return models.AnalysisResult{}, analysis.NewError(analysis.CategoryInternal, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return models.AnalysisResult{}, analysis.NewError(analysis.CategoryInternal, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
			return models.AnalysisResult{}, analysis.NewError(analysis.CategoryTimeout, "request timeout", err)
		}
		return models.AnalysisResult{}, analysis.NewError(analysis.CategoryOutage, "failed to execute request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.AnalysisResult{}, analysis.NewError(analysis.CategoryBadData, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return models.AnalysisResult{}, statusError(resp.StatusCode, raw)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return models.AnalysisResult{}, analysis.NewError(analysis.CategoryBadData, "malformed analysis payload", err)
	}
	if err := result.Validate(); err != nil {
		return models.AnalysisResult{}, analysis.NewError(analysis.CategoryBadData, "invalid analysis payload", err)
	}
	return result, nil
}

func statusError(status int, raw []byte) *analysis.Error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	msg := eb.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	category := analysis.CategoryOutage
	switch {
	case status == http.StatusTooManyRequests:
		category = analysis.CategoryRateLimited
	case status == http.StatusPaymentRequired:
		category = analysis.CategoryCreditsExhausted
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		category = analysis.CategoryTimeout
	case status >= 400 && status < 500:
		category = analysis.CategoryBadData
	}
	return &analysis.Error{Category: category, StatusCode: status, Message: msg}
}

// record feeds the breaker. Only failures that say the endpoint is unhealthy
// count against it.
func (c *Client) record(ctx context.Context, err error) {
	var change circuit.StateChange
	switch analysis.CategoryOf(err) {
	case analysis.CategoryTimeout, analysis.CategoryOutage, analysis.CategoryRateLimited, analysis.CategoryCreditsExhausted:
		change = c.breaker.RecordFailure()
	default:
		change = c.breaker.RecordSuccess()
	}
	if change.Opened {
		c.logger.WarnContext(ctx, "analysis circuit opened", "breaker", c.breaker.Name(), "error", err)
	}
	if change.Closed {
		c.logger.InfoContext(ctx, "analysis circuit closed", "breaker", c.breaker.Name())
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

var _ analysis.Analyzer = (*Client)(nil)

// String identifies the client in logs.
func (c *Client) String() string { return fmt.Sprintf("remote(%s)", c.url) }
