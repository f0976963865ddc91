// Package display renders a content item's verification status into the
// presentation model served to clients. Rendering is a pure function of
// (status, alert message).
package display

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"veritas/internal/scan/models"
)

const (
	// FallbackAlertMessage is shown for alerts that carry no text.
	FallbackAlertMessage = "Suspicious content detected"
	// VerifiedMessage accompanies a verified item.
	VerifiedMessage = "Credentials verified via official registry"
)

// Tone is the semantic colour of a card border or badge.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	TonePrimary Tone = "primary"
	ToneSuccess Tone = "success"
	ToneDanger  Tone = "danger"
	ToneMuted   Tone = "muted"
)

// Badge is the status chip in the card corner.
type Badge struct {
	Label   string `json:"label"`
	Icon    string `json:"icon"`
	Tone    Tone   `json:"tone"`
	Pulsing bool   `json:"pulsing,omitempty"`
	Spinner bool   `json:"spinner,omitempty"`
}

// Panel is the message box under the card body.
type Panel struct {
	Icon    string `json:"icon"`
	Message string `json:"message"`
	Tone    Tone   `json:"tone"`
}

// View is the rendering of one status.
type View struct {
	Status      models.VerificationStatus `json:"status"`
	Border      Tone                      `json:"border"`
	Highlight   bool                      `json:"highlight,omitempty"`
	ScanOverlay bool                      `json:"scan_overlay,omitempty"`
	ShowsDwell  bool                      `json:"shows_dwell,omitempty"`
	Badge       *Badge                    `json:"badge,omitempty"`
	Panel       *Panel                    `json:"panel,omitempty"`
}

var textPolicy = bluemonday.StrictPolicy()

// Render maps a status and optional alert text to its view. Unknown statuses
// render like pending.
func Render(status models.VerificationStatus, alertMessage string) View {
	switch status {
	case models.StatusScanning:
		return View{
			Status:      status,
			Border:      TonePrimary,
			ScanOverlay: true,
			Badge:       &Badge{Label: "Scanning", Icon: "loader", Tone: TonePrimary, Spinner: true},
		}
	case models.StatusVerified:
		return View{
			Status: status,
			Border: ToneSuccess,
			Badge:  &Badge{Label: "Verified", Icon: "check-circle", Tone: ToneSuccess},
			Panel:  &Panel{Icon: "check-circle", Message: VerifiedMessage, Tone: ToneSuccess},
		}
	case models.StatusAlert:
		return View{
			Status:    status,
			Border:    ToneDanger,
			Highlight: true,
			Badge:     &Badge{Label: "Alert", Icon: "alert-triangle", Tone: ToneDanger, Pulsing: true},
			Panel:     &Panel{Icon: "alert-triangle", Message: AlertText(alertMessage), Tone: ToneDanger},
		}
	case models.StatusUnverified:
		return View{
			Status: status,
			Border: ToneNeutral,
			Badge:  &Badge{Label: "Unverified", Icon: "help-circle", Tone: ToneMuted},
		}
	default:
		return View{
			Status:     models.StatusPending,
			Border:     ToneNeutral,
			ShowsDwell: true,
		}
	}
}

// AlertText returns displayable alert text: markup stripped, whitespace
// collapsed, and the fallback when nothing is left.
func AlertText(message string) string {
	clean := strings.Join(strings.Fields(Sanitize(message)), " ")
	if clean == "" {
		return FallbackAlertMessage
	}
	return clean
}

// Sanitize strips markup from catalog or upstream text before display. The
// result is plain text, so entities escaped by the policy are decoded again.
func Sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

var professionIcons = map[string]string{
	"doctor":     "stethoscope",
	"lawyer":     "scale",
	"politician": "landmark",
	"influencer": "trending-up",
	"unknown":    "user",
}

// ProfessionIcon returns the avatar icon for a profession tag.
func ProfessionIcon(profession string) string {
	if icon, ok := professionIcons[strings.ToLower(profession)]; ok {
		return icon
	}
	return professionIcons["unknown"]
}
