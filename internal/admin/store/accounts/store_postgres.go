package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"veritas/internal/admin/models"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
)

// PostgresStore persists the registry in known_fake_accounts.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, username, platform, reason, evidence, reported_count, status, created_at, updated_at`

func (s *PostgresStore) Report(ctx context.Context, report models.Report, now time.Time) (*models.FakeAccount, error) {
	username := models.NormalizedUsername(report.Username)
	if username == "" || strings.TrimSpace(report.Reason) == "" {
		return nil, sentinel.ErrInvalidInput
	}
	query := `
		INSERT INTO known_fake_accounts (id, username, platform, reason, evidence, reported_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, 'pending', $6, $6)
		ON CONFLICT ((lower(username)), platform) DO UPDATE SET
			reported_count = known_fake_accounts.reported_count + 1,
			evidence = COALESCE(known_fake_accounts.evidence, EXCLUDED.evidence),
			status = CASE WHEN known_fake_accounts.status = 'dismissed' THEN 'pending' ELSE known_fake_accounts.status END,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + accountColumns
	account, err := scanAccount(s.db.QueryRowContext(ctx, query,
		uuid.New(),
		username,
		strings.TrimSpace(report.Platform),
		strings.TrimSpace(report.Reason),
		sql.NullString{String: report.Evidence, Valid: report.Evidence != ""},
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("report fake account: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.FakeAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM known_fake_accounts WHERE id = $1`
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, uuid.UUID(accountID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find fake account: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.AccountFilter, limit int) ([]*models.FakeAccount, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		where = append(where, fmt.Sprintf("(username ILIKE $%d OR reason ILIKE $%d)", len(args), len(args)))
	}
	query := `SELECT ` + accountColumns + ` FROM known_fake_accounts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, clampLimit(limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fake accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.FakeAccount, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fake account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fake accounts: %w", err)
	}
	return accounts, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, accountID id.AccountID, status models.AccountStatus, now time.Time) (*models.FakeAccount, error) {
	if !status.IsValid() {
		return nil, sentinel.ErrInvalidInput
	}
	query := `
		UPDATE known_fake_accounts SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + accountColumns
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, uuid.UUID(accountID), string(status), now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update fake account status: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) Delete(ctx context.Context, accountID id.AccountID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM known_fake_accounts WHERE id = $1`, uuid.UUID(accountID))
	if err != nil {
		return fmt.Errorf("delete fake account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete fake account rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (models.AccountCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'dismissed')
		FROM known_fake_accounts
	`
	var c models.AccountCounts
	if err := s.db.QueryRowContext(ctx, query).Scan(&c.Confirmed, &c.Pending, &c.Dismissed); err != nil {
		return models.AccountCounts{}, fmt.Errorf("count fake accounts: %w", err)
	}
	return c, nil
}

type accountRow interface {
	Scan(dest ...any) error
}

func scanAccount(row accountRow) (*models.FakeAccount, error) {
	var (
		a         models.FakeAccount
		accountID uuid.UUID
		evidence  sql.NullString
		status    string
	)
	if err := row.Scan(&accountID, &a.Username, &a.Platform, &a.Reason, &evidence,
		&a.ReportedCount, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ID = id.AccountID(accountID)
	a.Evidence = evidence.String
	a.Status = models.AccountStatus(status)
	return &a, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
