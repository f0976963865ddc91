// Package gateway implements content analysis with a chat-completions model
// behind an OpenAI-compatible AI gateway, and serves it over HTTP.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"veritas/internal/analysis"
	"veritas/internal/platform/tracer"
	"veritas/internal/scan/models"
)

const (
	DefaultBaseURL = "https://ai.gateway.lovable.dev/v1"
	DefaultModel   = "google/gemini-2.5-flash"
)

// Config configures the LLM analyzer.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Tracer     tracer.Tracer
	Logger     *slog.Logger
}

// LLMAnalyzer is an analysis.Analyzer backed by a chat-completions model.
type LLMAnalyzer struct {
	client *openai.Client
	model  string
	tracer tracer.Tracer
	logger *slog.Logger
}

// New creates an analyzer. Empty base URL and model use the defaults.
func New(cfg Config) *LLMAnalyzer {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	tr := cfg.Tracer
	if tr == nil {
		tr = tracer.NewNoop()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMAnalyzer{
		client: openai.NewClientWithConfig(oc),
		model:  model,
		tracer: tr,
		logger: logger,
	}
}

// Analyze asks the model for a classification. An answer that cannot be
// parsed yields the incomplete-analysis result rather than an error.
func (a *LLMAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (result models.AnalysisResult, err error) {
	ctx, span := a.tracer.Start(ctx, tracer.SpanAnalyzeLLM,
		tracer.String(tracer.AttrModel, a.model),
		tracer.String(tracer.AttrHandle, tracer.HashHandle(req.Username)),
		tracer.String(tracer.AttrContentType, req.ContentType),
	)
	defer func() { span.End(err) }()

	a.logger.InfoContext(ctx, "analyzing content",
		"handle_hash", tracer.HashHandle(req.Username),
		"content_type", req.ContentType,
		"platform", req.Platform,
	)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
	})
	if err != nil {
		return models.AnalysisResult{}, classify(ctx, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return models.AnalysisResult{}, analysis.NewError(analysis.CategoryBadData, "No response from AI", nil)
	}

	result, ok := parseContent(resp.Choices[0].Message.Content)
	if !ok {
		a.logger.WarnContext(ctx, "failed to parse model response, returning incomplete analysis",
			"handle_hash", tracer.HashHandle(req.Username))
		span.AddEvent("parse_fallback")
	}
	span.SetAttributes(
		tracer.String(tracer.AttrStatus, string(result.VerificationStatus)),
		tracer.Int(tracer.AttrConfidence, result.ConfidenceScore),
	)
	return result, nil
}

// classify maps go-openai errors onto the analysis taxonomy.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return analysis.NewError(analysis.CategoryTimeout, "AI gateway timeout", err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	ae := &analysis.Error{Category: analysis.CategoryOutage, StatusCode: status, Message: "AI gateway error", Err: err}
	switch status {
	case http.StatusTooManyRequests:
		ae.Category = analysis.CategoryRateLimited
	case http.StatusPaymentRequired:
		ae.Category = analysis.CategoryCreditsExhausted
	case 0:
		ae.Message = "AI gateway unreachable"
	}
	return ae
}

var _ analysis.Analyzer = (*LLMAnalyzer)(nil)
