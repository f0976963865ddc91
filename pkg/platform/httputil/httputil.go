// Package httputil holds the JSON response and request helpers shared by the
// HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/requestcontext"
)

type errorMapping struct {
	status int
	name   string
}

var internalMapping = errorMapping{http.StatusInternalServerError, "internal_error"}

var errorMappings = map[dErrors.Code]errorMapping{
	dErrors.CodeNotFound:           {http.StatusNotFound, "not_found"},
	dErrors.CodeBadRequest:         {http.StatusBadRequest, "bad_request"},
	dErrors.CodeInvalidInput:       {http.StatusBadRequest, "bad_request"},
	dErrors.CodeValidation:         {http.StatusBadRequest, "validation_error"},
	dErrors.CodeConflict:           {http.StatusConflict, "conflict"},
	dErrors.CodeInvariantViolation: {http.StatusConflict, "invalid_state"},
	dErrors.CodeUnauthorized:       {http.StatusUnauthorized, "unauthorized"},
	dErrors.CodeForbidden:          {http.StatusForbidden, "forbidden"},
	dErrors.CodeTimeout:            {http.StatusGatewayTimeout, "analysis_timeout"},
	dErrors.CodeRateLimited:        {http.StatusTooManyRequests, "rate_limited"},
	dErrors.CodeCreditsExhausted:   {http.StatusPaymentRequired, "credits_exhausted"},
	dErrors.CodeUnavailable:        {http.StatusServiceUnavailable, "unavailable"},
	dErrors.CodeBadUpstream:        {http.StatusBadGateway, "bad_upstream"},
}

func mappingFor(code dErrors.Code) errorMapping {
	if m, ok := errorMappings[code]; ok {
		return m
	}
	return internalMapping
}

// ErrorStatus is the HTTP status a domain code is answered with.
func ErrorStatus(code dErrors.Code) int { return mappingFor(code).status }

// ErrorName is the "error" field a domain code is reported as, on HTTP
// bodies and websocket frames alike.
func ErrorName(code dErrors.Code) string { return mappingFor(code).name }

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encode failure has nowhere to go.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError answers with the status and name mapped from err's domain code.
// Errors without a code become a bare 500 so driver or upstream messages are
// never echoed to clients.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		WriteJSON(w, internalMapping.status, map[string]string{"error": internalMapping.name})
		return
	}
	m := mappingFor(de.Code)
	body := map[string]string{"error": m.name}
	if de.Message != "" {
		body["error_description"] = de.Message
	}
	WriteJSON(w, m.status, body)
}

// RequireUserID reads the caller set by the auth middleware. A missing user
// behind that middleware is a wiring bug, so it is reported as internal.
func RequireUserID(ctx context.Context, logger *slog.Logger, requestID string) (id.UserID, error) {
	userID := requestcontext.UserID(ctx)
	if !userID.IsNil() {
		return userID, nil
	}
	if logger != nil {
		logger.ErrorContext(ctx, "authenticated route reached without a user", "request_id", requestID)
	}
	return id.UserID{}, dErrors.New(dErrors.CodeInternal, "authentication context error")
}
