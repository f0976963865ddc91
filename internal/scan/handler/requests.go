package handler

import (
	"strings"

	"veritas/internal/scan/models"
	dErrors "veritas/pkg/domain-errors"
)

// PresenceRequest reports pointer or touch presence over an item.
type PresenceRequest struct {
	Present *bool `json:"present"`
}

func (r *PresenceRequest) Validate() error {
	if r.Present == nil {
		return dErrors.New(dErrors.CodeValidation, "present is required")
	}
	return nil
}

// MonitoringRequest toggles protection.
type MonitoringRequest struct {
	Enabled *bool `json:"enabled"`
}

func (r *MonitoringRequest) Validate() error {
	if r.Enabled == nil {
		return dErrors.New(dErrors.CodeValidation, "enabled is required")
	}
	return nil
}

// Socket message types accepted on the scanner WebSocket.
const (
	msgPresence   = "presence"
	msgMonitoring = "monitoring"
	msgReset      = "reset"
	msgResetItem  = "reset_item"
)

// SocketMessage is one inbound WebSocket frame.
type SocketMessage struct {
	Type    string `json:"type"`
	ItemID  string `json:"item_id,omitempty"`
	Present *bool  `json:"present,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func (m *SocketMessage) Normalize() {
	m.Type = strings.ToLower(strings.TrimSpace(m.Type))
	m.ItemID = strings.TrimSpace(m.ItemID)
}

func (m *SocketMessage) Validate() error {
	switch m.Type {
	case msgPresence:
		if m.ItemID == "" || m.Present == nil {
			return dErrors.New(dErrors.CodeValidation, "presence requires item_id and present")
		}
	case msgMonitoring:
		if m.Enabled == nil {
			return dErrors.New(dErrors.CodeValidation, "monitoring requires enabled")
		}
	case msgResetItem:
		if m.ItemID == "" {
			return dErrors.New(dErrors.CodeValidation, "reset_item requires item_id")
		}
	case msgReset:
	default:
		return dErrors.New(dErrors.CodeValidation, "unknown message type")
	}
	return nil
}

// HistoryResponse lists the caller's scans, newest first.
type HistoryResponse struct {
	Scans []*models.ScanRecord `json:"scans"`
	Count int                  `json:"count"`
}

type MonitoringResponse struct {
	Monitoring bool `json:"monitoring"`
}

type ResetResponse struct {
	Reset int `json:"reset"`
}
