package kafka

import (
	"strings"
	"time"

	lists "veritas/pkg/platform/strings"
)

// Config holds the settings shared by producers, consumers and the health
// check.
type Config struct {
	Brokers         string
	Topic           string
	GroupID         string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// DefaultConfig returns sensible defaults for production use. Brokers stay
// empty, which leaves the change feed disabled.
func DefaultConfig() Config {
	return Config{
		Topic:           "veritas.scan-records",
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 30 * time.Second,
	}
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	return len(c.BrokerList()) > 0
}

// BrokerList splits the comma separated broker string, dropping blanks and
// repeats.
func (c Config) BrokerList() []string {
	return lists.DedupeAndTrim(strings.Split(c.Brokers, ","))
}
