package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"regexp"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"veritas/internal/scan/models"
)

// Sender delivers one message to every configured service.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// ShoutrrrSink pushes alert records to ops channels (Slack, Telegram,
// generic webhooks, ...). Listen only enqueues; Run does the sending.
type ShoutrrrSink struct {
	sender  Sender
	queue   chan *models.ScanRecord
	logger  *slog.Logger
	metrics *Metrics
}

// NewShoutrrrSink builds a sink for the given service URLs.
func NewShoutrrrSink(urls []string, timeout time.Duration, buffer int, logger *slog.Logger) (*ShoutrrrSink, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one notification URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, redactError(err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return NewSinkWithSender(sender, buffer, logger), nil
}

// NewSinkWithSender builds a sink over an existing sender.
func NewSinkWithSender(sender Sender, buffer int, logger *slog.Logger) *ShoutrrrSink {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShoutrrrSink{
		sender: sender,
		queue:  make(chan *models.ScanRecord, buffer),
		logger: logger,
	}
}

// SetMetrics sets the metrics instance for the sink.
func (s *ShoutrrrSink) SetMetrics(m *Metrics) { s.metrics = m }

// Listen is a hub listener. Non-alert records are ignored; when the queue
// is full the record is dropped.
func (s *ShoutrrrSink) Listen(ctx context.Context, record *models.ScanRecord) {
	if record == nil || !record.IsAlert() {
		return
	}
	select {
	case s.queue <- record:
	default:
		s.metrics.dropped("push")
		s.logger.WarnContext(ctx, "push queue full, dropping alert", "scan_id", record.ID.String())
	}
}

// Run sends queued alerts until ctx is done.
func (s *ShoutrrrSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case record := <-s.queue:
			if err := s.send(record); err != nil {
				s.logger.ErrorContext(ctx, "push notification failed",
					"scan_id", record.ID.String(),
					"error", err,
				)
			}
		}
	}
}

func (s *ShoutrrrSink) send(record *models.ScanRecord) error {
	alert := NewAlert(record)
	params := stypes.Params{}
	params.SetTitle(alert.Title)
	body := fmt.Sprintf("%s\nPlatform: %s\nConfidence: %d%%", alert.Message, alert.Platform, alert.Confidence)
	for _, err := range s.sender.Send(body, &params) {
		if err != nil {
			return redactError(err)
		}
	}
	return nil
}

var serviceURLPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"']+`)

// redactError hides service URLs, which carry tokens, from error text.
func redactError(err error) error {
	return errors.New(serviceURLPattern.ReplaceAllString(err.Error(), "[redacted-url]"))
}
