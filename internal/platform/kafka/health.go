package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Pinger is satisfied by the producer and by *kgo.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports whether the change-feed brokers answer.
type HealthChecker struct {
	pinger  Pinger
	timeout time.Duration
}

func NewHealthChecker(p Pinger) *HealthChecker {
	return &HealthChecker{pinger: p, timeout: 2 * time.Second}
}

// Check fails when no broker answers a metadata request within the timeout.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.pinger == nil {
		return errors.New("kafka brokers not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("kafka unreachable: %w", err)
	}
	return nil
}

func (h *HealthChecker) Name() string {
	return "kafka"
}
