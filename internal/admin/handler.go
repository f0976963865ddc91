package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"veritas/internal/admin/models"
	"veritas/internal/admin/types"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/audit"
	"veritas/pkg/platform/httputil"
	"veritas/pkg/platform/validation"
	"veritas/pkg/requestcontext"
)

// AdminService is the surface the admin handlers need.
type AdminService interface {
	IsAdmin(ctx context.Context, userID id.UserID) (bool, error)
	GetStats(ctx context.Context) (*Stats, error)
	ListScans(ctx context.Context, filter types.ScanFilter) ([]*types.AdminScan, error)
	ListAccounts(ctx context.Context, filter models.AccountFilter) ([]*models.FakeAccount, error)
	ReportAccount(ctx context.Context, reporter id.UserID, report models.Report) (*models.FakeAccount, error)
	UpdateAccountStatus(ctx context.Context, actor id.UserID, accountID id.AccountID, status models.AccountStatus) (*models.FakeAccount, error)
	DeleteAccount(ctx context.Context, actor id.UserID, accountID id.AccountID) error
	GetRecentAuditEvents(ctx context.Context, limit int) ([]audit.Event, error)
	RecordDenied(ctx context.Context, userID id.UserID, path string)
}

// Handler handles the admin dashboard endpoints and account reports.
type Handler struct {
	service AdminService
	logger  *slog.Logger
}

// New creates a new admin handler.
func New(service AdminService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers admin routes with the router. The report endpoint is
// open to every signed-in user; everything under /admin needs the role.
func (h *Handler) Register(r chi.Router) {
	r.Post("/accounts/report", h.HandleReportAccount)
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAdmin)
		r.Get("/admin/stats", h.HandleGetStats)
		r.Get("/admin/scans", h.HandleListScans)
		r.Get("/admin/accounts", h.HandleListAccounts)
		r.Patch("/admin/accounts/{accountID}", h.HandleUpdateAccount)
		r.Delete("/admin/accounts/{accountID}", h.HandleDeleteAccount)
		r.Get("/admin/audit/recent", h.HandleGetRecentAuditEvents)
	})
}

// RequireAdmin rejects callers without the admin role. Role lookups that
// fail are answered with 500, never with access.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)
		userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		ok, err := h.service.IsAdmin(ctx, userID)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to check admin role",
				"error", err,
				"request_id", requestID,
			)
			httputil.WriteError(w, err)
			return
		}
		if !ok {
			h.logger.WarnContext(ctx, "admin access denied",
				"user_id", userID.String(),
				"path", r.URL.Path,
				"request_id", requestID,
			)
			h.service.RecordDenied(ctx, userID, r.URL.Path)
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleGetStats returns scan and registry totals.
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	stats, err := h.service.GetStats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get stats",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleListScans returns the newest scans across all users.
func (h *Handler) HandleListScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	search, status, err := listQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	scans, err := h.service.ListScans(ctx, types.ScanFilter{Search: search, Status: status})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list scans",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "admin scans listed",
		"request_id", requestID,
		"count", len(scans),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"scans": scans,
		"total": len(scans),
	})
}

// HandleListAccounts returns the fake-account registry.
func (h *Handler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	search, rawStatus, err := listQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter := models.AccountFilter{Search: search}
	if rawStatus != "" {
		if filter.Status, err = models.ParseAccountStatus(rawStatus); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	list, err := h.service.ListAccounts(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list accounts",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &AccountsListResponse{Accounts: list, Total: len(list)})
}

// HandleUpdateAccount confirms or dismisses a reported account.
func (h *Handler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid account id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateAccountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, err := h.service.UpdateAccountStatus(ctx, requestcontext.UserID(ctx), accountID, req.parsed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "account status updated",
		"account_id", accountID.String(),
		"status", string(account.Status),
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusOK, account)
}

// HandleDeleteAccount removes a registry entry.
func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid account id"))
		return
	}
	if err := h.service.DeleteAccount(ctx, requestcontext.UserID(ctx), accountID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReportAccount records a signed-in user's report.
func (h *Handler) HandleReportAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, err := httputil.RequireUserID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReportAccountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, err := h.service.ReportAccount(ctx, userID, req.toReport())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record account report",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if account.ReportedCount == 1 {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, account)
}

// HandleGetRecentAuditEvents returns recent audit events.
func (h *Handler) HandleGetRecentAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.service.GetRecentAuditEvents(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get recent audit events",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  len(events),
	})
}

// listQuery reads the shared search and status filters. "all" means no
// status filter.
func listQuery(r *http.Request) (string, string, error) {
	q := r.URL.Query()
	search := strings.TrimSpace(q.Get("search"))
	if err := validation.CheckStringLength("search", search, validation.MaxSearchLength); err != nil {
		return "", "", err
	}
	status := strings.TrimSpace(q.Get("status"))
	if strings.EqualFold(status, "all") {
		status = ""
	}
	return search, status, nil
}
