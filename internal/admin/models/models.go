// Package models defines the fake-account registry reviewed by admins.
package models

import (
	"strings"
	"time"

	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
)

// AccountStatus is the review state of a reported account.
type AccountStatus string

const (
	AccountPending   AccountStatus = "pending"
	AccountConfirmed AccountStatus = "confirmed"
	AccountDismissed AccountStatus = "dismissed"
)

// ParseAccountStatus accepts one of the three review states.
func ParseAccountStatus(s string) (AccountStatus, error) {
	st := AccountStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be pending, confirmed or dismissed")
	}
	return st, nil
}

func (s AccountStatus) IsValid() bool {
	return s == AccountPending || s == AccountConfirmed || s == AccountDismissed
}

// IsReviewOutcome reports whether an admin may set the status directly.
func (s AccountStatus) IsReviewOutcome() bool {
	return s == AccountConfirmed || s == AccountDismissed
}

// Role names stored in user_roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// FakeAccount is a handle users reported as impersonating someone. Repeated
// reports of the same username on the same platform bump ReportedCount.
type FakeAccount struct {
	ID            id.AccountID  `json:"id"`
	Username      string        `json:"username"`
	Platform      string        `json:"platform"`
	Reason        string        `json:"reason"`
	Evidence      string        `json:"evidence,omitempty"`
	ReportedCount int           `json:"reported_count"`
	Status        AccountStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Report is one user's report of a suspected fake account.
type Report struct {
	Username string
	Platform string
	Reason   string
	Evidence string
}

// NormalizedUsername strips a leading @ and surrounding space.
func NormalizedUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

// HandleKey identifies an account across reports: usernames compare
// case-insensitively, platforms exactly.
func HandleKey(username, platform string) string {
	return strings.ToLower(NormalizedUsername(username)) + "\x00" + strings.TrimSpace(platform)
}

// AccountFilter narrows the admin account listing.
type AccountFilter struct {
	Search string        // case-insensitive substring of username or reason
	Status AccountStatus // empty means any status
}

// Matches applies the filter in memory.
func (f AccountFilter) Matches(a FakeAccount) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(a.Username), needle) ||
		strings.Contains(strings.ToLower(a.Reason), needle)
}

// AccountCounts summarises the registry by review state.
type AccountCounts struct {
	Confirmed int `json:"fake_accounts"`
	Pending   int `json:"pending_reports"`
	Dismissed int `json:"dismissed_reports"`
}
