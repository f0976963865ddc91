// Package postgres stores audit events in the audit_events table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "veritas/pkg/domain"
	audit "veritas/pkg/platform/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const (
	eventColumns = `category, created_at, user_id, subject, action, reason, request_id, device, ip_address`

	insertEvent = `INSERT INTO audit_events (id, ` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	// id breaks ties between events stamped with the same request time.
	selectByUser = `SELECT ` + eventColumns + ` FROM audit_events
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
	selectRecent = `SELECT ` + eventColumns + ` FROM audit_events
		ORDER BY created_at DESC, id DESC LIMIT $1`
)

// Append inserts event. A nil user ID is stored as NULL.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	_, err := s.db.ExecContext(ctx, insertEvent,
		uuid.Must(uuid.NewV7()),
		string(event.Category),
		event.Timestamp,
		uuid.NullUUID{UUID: uuid.UUID(event.UserID), Valid: !event.UserID.IsNil()},
		event.Subject,
		event.Action,
		event.Reason,
		event.RequestID,
		event.Device,
		event.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return s.query(ctx, selectByUser, uuid.UUID(userID), audit.MaxListLimit)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return s.query(ctx, selectRecent, audit.ClampLimit(limit))
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]audit.Event, 0)
	for rows.Next() {
		var (
			e        audit.Event
			category string
			userID   uuid.NullUUID
		)
		if err := rows.Scan(&category, &e.Timestamp, &userID, &e.Subject, &e.Action,
			&e.Reason, &e.RequestID, &e.Device, &e.IPAddress); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		if userID.Valid {
			e.UserID = id.UserID(userID.UUID)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
