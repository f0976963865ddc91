// Package handler exposes the scanner board and scan history over HTTP and
// a WebSocket.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	prefmodels "veritas/internal/preferences/models"
	"veritas/internal/scan/models"
	"veritas/internal/scan/service"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/httputil"
	"veritas/pkg/requestcontext"
)

// Service is the scan controller surface used by the handlers.
type Service interface {
	Open(ctx context.Context, userID id.UserID) (*service.Board, error)
	SetMonitoring(ctx context.Context, userID id.UserID, enabled bool) (*prefmodels.Preferences, error)
	CloseBoard(userID id.UserID)
	ListHistory(ctx context.Context, userID id.UserID) ([]*models.ScanRecord, error)
	DeleteScan(ctx context.Context, userID id.UserID, scanID id.ScanID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
	socket  socketConfig
}

type Option func(*Handler)

// WithAllowedOrigins restricts WebSocket upgrades to the given origins. With
// no origins only same-host upgrades are accepted.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Handler) { h.socket.allowedOrigins = append([]string(nil), origins...) }
}

func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: svc, logger: logger, socket: defaultSocketConfig()}
	for _, opt := range opts {
		opt(h)
	}
	h.socket.upgrader.CheckOrigin = h.socket.checkOrigin
	return h
}

// Register mounts the request/response routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/scanner/items", h.HandleItems)
	r.Post("/scanner/items/{itemID}/presence", h.HandlePresence)
	r.Post("/scanner/items/{itemID}/reset", h.HandleResetItem)
	r.Put("/scanner/monitoring", h.HandleMonitoring)
	r.Post("/scanner/reset", h.HandleReset)
	r.Delete("/scanner/session", h.HandleCloseSession)
	r.Get("/scans", h.HandleListScans)
	r.Delete("/scans/{scanID}", h.HandleDeleteScan)
}

// RegisterStreaming mounts the long-lived routes, which must stay outside
// any request timeout.
func (h *Handler) RegisterStreaming(r chi.Router) {
	r.Get("/scanner/ws", h.HandleSocket)
}

func (h *Handler) openBoard(w http.ResponseWriter, r *http.Request) (*service.Board, id.UserID, bool) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, userID, false
	}
	board, err := h.service.Open(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open scanner board",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return nil, userID, false
	}
	return board, userID, true
}

func (h *Handler) HandleItems(w http.ResponseWriter, r *http.Request) {
	board, _, ok := h.openBoard(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, board.Snapshot())
}

func (h *Handler) HandlePresence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid item id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[PresenceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	board, _, ok := h.openBoard(w, r)
	if !ok {
		return
	}

	snap, err := board.Presence(itemID, *req.Present)
	if err != nil {
		httputil.WriteError(w, boardError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) HandleResetItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid item id"))
		return
	}
	board, _, ok := h.openBoard(w, r)
	if !ok {
		return
	}
	snap, err := board.ResetItem(itemID)
	if err != nil {
		httputil.WriteError(w, boardError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) HandleMonitoring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[MonitoringRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	// Open first so a board created by this request starts from the stored
	// preference before the toggle is applied.
	_, userID, ok := h.openBoard(w, r)
	if !ok {
		return
	}

	prefs, err := h.service.SetMonitoring(ctx, userID, *req.Enabled)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to set monitoring",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MonitoringResponse{Monitoring: prefs.ProtectionActive})
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	board, _, ok := h.openBoard(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ResetResponse{Reset: board.Reset()})
}

func (h *Handler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httputil.RequireUserID(ctx, h.logger, requestcontext.RequestID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.service.CloseBoard(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.ListHistory(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list scan history",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []*models.ScanRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{Scans: records, Count: len(records)})
}

func (h *Handler) HandleDeleteScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	scanID, err := id.ParseScanID(chi.URLParam(r, "scanID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid scan id"))
		return
	}

	if err := h.service.DeleteScan(ctx, userID, scanID); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to delete scan",
				"error", err,
				"request_id", requestID,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// boardError translates board sentinels into domain errors.
func boardError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "item not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, err.Error())
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "scanner board error")
	}
}
