package admin

import (
	"strings"

	"veritas/internal/admin/models"
	"veritas/internal/scan/display"
	"veritas/pkg/platform/validation"
)

// ReportAccountRequest is a user's report of a suspected fake account.
type ReportAccountRequest struct {
	Username string `json:"username"`
	Platform string `json:"platform"`
	Reason   string `json:"reason"`
	Evidence string `json:"evidence"`
}

func (r *ReportAccountRequest) Sanitize() {
	r.Reason = display.Sanitize(r.Reason)
	r.Evidence = display.Sanitize(r.Evidence)
}

func (r *ReportAccountRequest) Normalize() {
	r.Username = models.NormalizedUsername(r.Username)
	r.Platform = strings.TrimSpace(r.Platform)
	r.Reason = strings.TrimSpace(r.Reason)
	r.Evidence = strings.TrimSpace(r.Evidence)
}

func (r *ReportAccountRequest) Validate() error {
	checks := []error{
		validation.CheckRequired("username", r.Username),
		validation.CheckRequired("reason", r.Reason),
		validation.CheckStringLength("username", r.Username, validation.MaxUsernameLength),
		validation.CheckStringLength("platform", r.Platform, validation.MaxPlatformLength),
		validation.CheckStringLength("reason", r.Reason, validation.MaxReasonLength),
		validation.CheckStringLength("evidence", r.Evidence, validation.MaxEvidenceLength),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *ReportAccountRequest) toReport() models.Report {
	return models.Report{
		Username: r.Username,
		Platform: r.Platform,
		Reason:   r.Reason,
		Evidence: r.Evidence,
	}
}

// UpdateAccountRequest carries an admin review outcome.
type UpdateAccountRequest struct {
	Status string `json:"status"`

	parsed models.AccountStatus
}

func (r *UpdateAccountRequest) Validate() error {
	st, err := models.ParseAccountStatus(r.Status)
	if err != nil {
		return err
	}
	r.parsed = st
	return nil
}

// AccountsListResponse wraps an account listing.
type AccountsListResponse struct {
	Accounts []*models.FakeAccount `json:"accounts"`
	Total    int                   `json:"total"`
}
