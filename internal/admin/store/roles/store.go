// Package roles stores per-user roles from the user_roles table.
package roles

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
)

// Store answers role lookups and records grants.
type Store interface {
	HasRole(ctx context.Context, userID id.UserID, role string) (bool, error)
	Grant(ctx context.Context, userID id.UserID, role string) error
	Revoke(ctx context.Context, userID id.UserID, role string) error
}

// InMemoryStore keeps roles in memory for tests and the demo mode.
type InMemoryStore struct {
	mu    sync.RWMutex
	roles map[id.UserID]map[string]struct{}
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{roles: make(map[id.UserID]map[string]struct{})}
}

func (s *InMemoryStore) HasRole(_ context.Context, userID id.UserID, role string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[userID][role]
	return ok, nil
}

func (s *InMemoryStore) Grant(_ context.Context, userID id.UserID, role string) error {
	if userID.IsNil() || role == "" {
		return sentinel.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles[userID] == nil {
		s.roles[userID] = make(map[string]struct{})
	}
	s.roles[userID][role] = struct{}{}
	return nil
}

func (s *InMemoryStore) Revoke(_ context.Context, userID id.UserID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[userID][role]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.roles[userID], role)
	return nil
}

// PostgresStore reads and writes user_roles.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) HasRole(ctx context.Context, userID id.UserID, role string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)`,
		uuid.UUID(userID), role).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user role: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Grant(ctx context.Context, userID id.UserID, role string) error {
	if userID.IsNil() || role == "" {
		return sentinel.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		uuid.UUID(userID), role)
	if err != nil {
		return fmt.Errorf("grant user role: %w", err)
	}
	return nil
}

func (s *PostgresStore) Revoke(ctx context.Context, userID id.UserID, role string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role = $2`,
		uuid.UUID(userID), role)
	if err != nil {
		return fmt.Errorf("revoke user role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke user role rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
