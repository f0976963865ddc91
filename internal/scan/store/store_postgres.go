package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"veritas/internal/scan/models"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
)

// PostgresStore persists scan records in the scan_history table.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed scan store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a scan store bound to a transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const recordColumns = `id, user_id, username_scanned, content_type, platform, verification_status,
	alert_type, alert_message, confidence_score, deepfake_detected, credential_verified, scanned_at`

func (s *PostgresStore) Create(ctx context.Context, record *models.ScanRecord) error {
	if record == nil {
		return fmt.Errorf("scan record is required: %w", sentinel.ErrInvalidInput)
	}
	query := `
		INSERT INTO scan_history (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.execer().ExecContext(ctx, query,
		uuid.UUID(record.ID),
		uuid.UUID(record.UserID),
		record.UsernameScanned,
		record.ContentType,
		record.Platform,
		string(record.Status),
		nullString(string(record.AlertType)),
		nullString(record.AlertMessage),
		record.ConfidenceScore,
		record.DeepfakeDetected,
		record.CredentialVerified,
		record.ScannedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert scan record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, scanID id.ScanID) (*models.ScanRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM scan_history WHERE id = $1`
	record, err := scanRecord(s.execer().QueryRowContext(ctx, query, uuid.UUID(scanID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find scan record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, limit int) ([]*models.ScanRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM scan_history
		WHERE user_id = $1
		ORDER BY scanned_at DESC, id
		LIMIT $2
	`
	return s.list(ctx, query, uuid.UUID(userID), clampLimit(limit, DefaultHistoryLimit))
}

func (s *PostgresStore) ListRecent(ctx context.Context, filter models.RecordFilter, limit int) ([]*models.ScanRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("verification_status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		where = append(where, fmt.Sprintf("(username_scanned ILIKE $%d OR content_type ILIKE $%d)", len(args), len(args)))
	}
	query := `SELECT ` + recordColumns + ` FROM scan_history`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, clampLimit(limit, DefaultRecentLimit))
	query += fmt.Sprintf(" ORDER BY scanned_at DESC, id LIMIT $%d", len(args))
	return s.list(ctx, query, args...)
}

func (s *PostgresStore) Delete(ctx context.Context, scanID id.ScanID, owner id.UserID) error {
	res, err := s.execer().ExecContext(ctx,
		`DELETE FROM scan_history WHERE id = $1 AND user_id = $2`,
		uuid.UUID(scanID), uuid.UUID(owner))
	if err != nil {
		return fmt.Errorf("delete scan record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scan record rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (Counts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE verification_status = 'alert'),
			COUNT(*) FILTER (WHERE verification_status = 'verified'),
			COUNT(*) FILTER (WHERE verification_status = 'unverified')
		FROM scan_history
	`
	var c Counts
	if err := s.execer().QueryRowContext(ctx, query).Scan(&c.Total, &c.Alerts, &c.Verified, &c.Unverified); err != nil {
		return Counts{}, fmt.Errorf("count scan records: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.ScanRecord, error) {
	rows, err := s.execer().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scan records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.ScanRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan records: %w", err)
	}
	return records, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.ScanRecord, error) {
	var (
		record       models.ScanRecord
		scanID       uuid.UUID
		userID       uuid.UUID
		status       string
		alertType    sql.NullString
		alertMessage sql.NullString
	)
	if err := row.Scan(&scanID, &userID, &record.UsernameScanned, &record.ContentType, &record.Platform,
		&status, &alertType, &alertMessage, &record.ConfidenceScore, &record.DeepfakeDetected,
		&record.CredentialVerified, &record.ScannedAt); err != nil {
		return nil, err
	}
	record.ID = id.ScanID(scanID)
	record.UserID = id.UserID(userID)
	record.Status = models.VerificationStatus(status)
	record.AlertType = models.AlertType(alertType.String)
	record.AlertMessage = alertMessage.String
	return &record, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
