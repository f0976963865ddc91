package gateway

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veritas/internal/analysis"
	"veritas/internal/scan/models"
	"veritas/pkg/platform/httputil"
	"veritas/pkg/requestcontext"
)

// Handler serves the analyze-content endpoint. Errors use the endpoint's
// own {"error": "..."} body so remote analysis clients can classify them.
type Handler struct {
	analyzer analysis.Analyzer
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(analyzer analysis.Analyzer, logger *slog.Logger) *Handler {
	return &Handler{analyzer: analyzer, logger: logger}
}

// Register registers the analysis routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Options("/functions/analyze-content", h.handlePreflight)
	r.Post("/functions/analyze-content", h.handleAnalyze)
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
}

func (h *Handler) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	setCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	setCORS(w)

	req, ok := httputil.DecodeAndPrepare[models.AnalysisRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.analyzer.Analyze(ctx, *req)
	if err != nil {
		h.logger.ErrorContext(ctx, "analysis failed",
			"error", err,
			"category", analysis.CategoryOf(err),
			"request_id", requestID,
		)
		writeAnalysisError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "analysis complete",
		"verification_status", result.VerificationStatus,
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func writeAnalysisError(w http.ResponseWriter, err error) {
	switch analysis.CategoryOf(err) {
	case analysis.CategoryRateLimited:
		httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded. Please try again later."})
	case analysis.CategoryCreditsExhausted:
		httputil.WriteJSON(w, http.StatusPaymentRequired, map[string]string{"error": "AI credits exhausted. Please add credits to continue."})
	default:
		msg := "Unknown error occurred"
		var ae *analysis.Error
		if errors.As(err, &ae) {
			msg = ae.Message
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
	}
}
