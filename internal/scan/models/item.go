package models

import (
	"fmt"

	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
)

// DisplayItem is a piece of content shown to the user. Its attributes come
// from the catalog and never change; the mutable status lives in ItemState.
type DisplayItem struct {
	ID          id.ItemID `json:"id"`
	Username    string    `json:"username"`
	Bio         string    `json:"bio"`
	ContentType string    `json:"content_type"`
	Profession  string    `json:"profession"`
	Platform    string    `json:"platform"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// AnalysisRequest builds the outbound analysis payload for this item.
func (d DisplayItem) AnalysisRequest() AnalysisRequest {
	return AnalysisRequest{
		Username:    d.Username,
		Bio:         d.Bio,
		ContentType: d.ContentType,
		Platform:    d.Platform,
		ImageURL:    d.ImageURL,
	}
}

// ItemState is the per-item status state machine.
//
// Allowed transitions:
//
//	pending  -> scanning                       (BeginScan)
//	scanning -> verified | alert | unverified  (Complete)
//	terminal -> pending                        (Reset)
//
// An item never re-enters scanning without first returning to pending.
// ItemState is not safe for concurrent use; its owner serialises access.
type ItemState struct {
	status       VerificationStatus
	alertMessage string
	scans        int
}

// NewItemState returns a state machine in the pending status.
func NewItemState() *ItemState {
	return &ItemState{status: StatusPending}
}

// Status returns the current status.
func (s *ItemState) Status() VerificationStatus { return s.status }

// AlertMessage returns the alert text of the last completed scan, if any.
func (s *ItemState) AlertMessage() string { return s.alertMessage }

// Scans returns how many scans have started on this item.
func (s *ItemState) Scans() int { return s.scans }

// BeginScan moves pending to scanning.
func (s *ItemState) BeginScan() error {
	if s.status != StatusPending {
		return fmt.Errorf("cannot begin scan from %s: %w", s.status, sentinel.ErrInvalidState)
	}
	s.status = StatusScanning
	s.alertMessage = ""
	s.scans++
	return nil
}

// Complete moves scanning to a terminal status. The alert message is kept
// only for alert results.
func (s *ItemState) Complete(status VerificationStatus, alertMessage string) error {
	if s.status != StatusScanning {
		return fmt.Errorf("cannot complete scan from %s: %w", s.status, sentinel.ErrInvalidState)
	}
	if !status.IsTerminal() {
		return fmt.Errorf("scan result %q is not terminal: %w", status, sentinel.ErrInvalidInput)
	}
	s.status = status
	if status == StatusAlert {
		s.alertMessage = alertMessage
	}
	return nil
}

// Reset returns a terminal item to pending. Resetting a pending item is a
// no-op; an item that is still scanning cannot be reset.
func (s *ItemState) Reset() error {
	switch {
	case s.status == StatusPending:
		return nil
	case s.status == StatusScanning:
		return fmt.Errorf("cannot reset while scanning: %w", sentinel.ErrInvalidState)
	}
	s.status = StatusPending
	s.alertMessage = ""
	return nil
}
