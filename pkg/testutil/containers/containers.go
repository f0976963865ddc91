//go:build integration

// Package containers starts the backing services integration tests run
// against. Each container is started once per test binary and shared.
package containers

import (
	"sync"
	"testing"
)

type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	kafka    *KafkaContainer
	redis    *RedisContainer
}

var (
	globalManager *Manager
	initOnce      sync.Once
)

func GetManager() *Manager {
	initOnce.Do(func() { globalManager = &Manager{} })
	return globalManager
}

// GetPostgres returns the shared, migrated Postgres.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return start(m, &m.postgres, t, NewPostgresContainer)
}

// GetKafka returns the shared broker used by the scan-record feed tests.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return start(m, &m.kafka, t, NewKafkaContainer)
}

// GetRedis returns the shared Redis used by the preferences store tests.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return start(m, &m.redis, t, NewRedisContainer)
}

func start[C any](m *Manager, slot **C, t *testing.T, newFn func(*testing.T) *C) *C {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if *slot == nil {
		*slot = newFn(t)
	}
	return *slot
}
