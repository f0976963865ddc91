package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	prefmodels "veritas/internal/preferences/models"
	"veritas/internal/scan/display"
	"veritas/internal/scan/models"
	id "veritas/pkg/domain"
	"veritas/pkg/platform/httputil"
	"veritas/pkg/requestcontext"
)

const (
	defaultHeartbeat = 30 * time.Second
	sseWriteTimeout  = 10 * time.Second
)

// PreferencesReader loads the owner's notification settings.
type PreferencesReader interface {
	Get(ctx context.Context, userID id.UserID) (*prefmodels.Preferences, error)
}

// Alert is the payload of one "alert" event on the stream.
type Alert struct {
	ScanID      id.ScanID        `json:"scan_id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Username    string           `json:"username"`
	Platform    string           `json:"platform"`
	AlertType   models.AlertType `json:"alert_type,omitempty"`
	Confidence  int              `json:"confidence_score"`
	ScannedAt   time.Time        `json:"scanned_at"`
	Destructive bool             `json:"destructive"`
}

// NewAlert builds the user-facing notification for an alert record.
func NewAlert(record *models.ScanRecord) Alert {
	return Alert{
		ScanID:      record.ID,
		Title:       AlertTitle(record.UsernameScanned),
		Message:     display.AlertText(record.AlertMessage),
		Username:    record.UsernameScanned,
		Platform:    record.Platform,
		AlertType:   record.AlertType,
		Confidence:  record.ConfidenceScore,
		ScannedAt:   record.ScannedAt,
		Destructive: true,
	}
}

// AlertTitle is the notification heading for a scanned username.
func AlertTitle(username string) string {
	return "Alert: @" + username
}

type StreamOption func(*AlertStream)

// WithHeartbeat sets the keepalive interval.
func WithHeartbeat(d time.Duration) StreamOption {
	return func(s *AlertStream) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithStreamMetrics sets the metrics instance for the stream.
func WithStreamMetrics(m *Metrics) StreamOption {
	return func(s *AlertStream) { s.metrics = m }
}

// AlertStream serves the per-user server-sent event stream of alerts.
type AlertStream struct {
	hub       *Hub
	prefs     PreferencesReader
	logger    *slog.Logger
	metrics   *Metrics
	heartbeat time.Duration
}

func NewAlertStream(hub *Hub, prefs PreferencesReader, logger *slog.Logger, opts ...StreamOption) *AlertStream {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AlertStream{hub: hub, prefs: prefs, logger: logger, heartbeat: defaultHeartbeat}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts the stream. Keep it outside any request timeout.
func (s *AlertStream) Register(r chi.Router) {
	r.Get("/notifications/stream", s.HandleStream)
}

func (s *AlertStream) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, err := httputil.RequireUserID(ctx, s.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	records, cancel := s.hub.Subscribe(userID, DefaultBuffer)
	defer cancel()
	s.metrics.streamOpened()
	defer s.metrics.streamClosed()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := writeEvent(w, rc, "connected", map[string]string{"user_id": userID.String()}); err != nil {
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case record, ok := <-records:
			if !ok {
				return
			}
			if !s.wanted(ctx, record) {
				continue
			}
			if err := writeEvent(w, rc, "alert", NewAlert(record)); err != nil {
				s.logger.DebugContext(ctx, "alert stream write failed", "error", err, "request_id", requestID)
				return
			}
		case <-ticker.C:
			if err := writeComment(w, rc, "keepalive"); err != nil {
				return
			}
		}
	}
}

// wanted reports whether the record should reach the user right now.
// Settings are read per alert so a toggle applies to an open stream.
func (s *AlertStream) wanted(ctx context.Context, record *models.ScanRecord) bool {
	if !record.IsAlert() {
		return false
	}
	prefs, err := s.prefs.Get(ctx, record.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load notification preferences",
			"user_id", record.UserID.String(),
			"error", err,
		)
		return false
	}
	return prefs.AlertsWanted()
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	_ = rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return rc.Flush()
}

func writeComment(w http.ResponseWriter, rc *http.ResponseController, comment string) error {
	_ = rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
	if _, err := fmt.Fprintf(w, ": %s\n\n", comment); err != nil {
		return err
	}
	return rc.Flush()
}
