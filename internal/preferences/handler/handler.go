// Package handler serves the caller's preferences.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veritas/internal/preferences/models"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/httputil"
	"veritas/pkg/requestcontext"
)

type Service interface {
	Get(ctx context.Context, userID id.UserID) (*models.Preferences, error)
	Update(ctx context.Context, userID id.UserID, update models.Update) (*models.Preferences, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/preferences", h.HandleGet)
	r.Put("/preferences", h.HandleUpdate)
}

// UpdateRequest is a partial preferences change.
type UpdateRequest struct {
	ProtectionActive     *bool `json:"protection_active"`
	NotificationsEnabled *bool `json:"notifications_enabled"`
}

func (r *UpdateRequest) Validate() error {
	if r.ProtectionActive == nil && r.NotificationsEnabled == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one preference is required")
	}
	return nil
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	prefs, err := h.service.Get(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load preferences",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, prefs)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	prefs, err := h.service.Update(ctx, userID, models.Update{
		ProtectionActive:     req.ProtectionActive,
		NotificationsEnabled: req.NotificationsEnabled,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to update preferences",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, prefs)
}
