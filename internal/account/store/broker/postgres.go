package broker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
	txcontext "brokerhub/pkg/platform/tx"
)

// PostgresStore persists brokers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const brokerColumns = `id, account_id, name, email, tax_id, role, deleted_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, broker *models.Broker) error {
	query := `
		INSERT INTO brokers (` + brokerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(broker.ID),
		uuid.UUID(broker.AccountID),
		broker.Name,
		broker.Email,
		broker.TaxID,
		string(broker.Role),
		broker.DeletedAt,
		broker.CreatedAt,
		broker.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert broker: %w", err)
	}
	return nil
}

// FindByID returns the row whether or not it is tombstoned.
func (s *PostgresStore) FindByID(ctx context.Context, brokerID id.BrokerID) (*models.Broker, error) {
	query := `SELECT ` + brokerColumns + ` FROM brokers WHERE id = $1`
	broker, err := scanBroker(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(brokerID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find broker: %w", err)
	}
	return broker, nil
}

// FindByEmail returns the live row with the given email, case-insensitively.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Broker, error) {
	query := `SELECT ` + brokerColumns + ` FROM brokers WHERE lower(email) = lower($1) AND deleted_at IS NULL`
	broker, err := scanBroker(s.q(ctx).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find broker by email: %w", err)
	}
	return broker, nil
}

// ExistsByEmail reports whether a live row carries the given email.
func (s *PostgresStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM brokers WHERE lower(email) = lower($1) AND deleted_at IS NULL)`
	if err := s.q(ctx).QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check broker email: %w", err)
	}
	return exists, nil
}

// ExistsByTaxID reports whether a live row carries the given tax id.
func (s *PostgresStore) ExistsByTaxID(ctx context.Context, taxID string) (bool, error) {
	if taxID == "" {
		return false, nil
	}
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM brokers WHERE tax_id = $1 AND deleted_at IS NULL)`
	if err := s.q(ctx).QueryRowContext(ctx, query, taxID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check broker tax id: %w", err)
	}
	return exists, nil
}

// CountLiveOwners counts non-tombstoned owner-role brokers for the account.
func (s *PostgresStore) CountLiveOwners(ctx context.Context, accountID id.AccountID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM brokers WHERE account_id = $1 AND role = 'owner' AND deleted_at IS NULL`
	if err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(accountID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count live owners: %w", err)
	}
	return count, nil
}

// SetDeletedAt writes the tombstone column; nil restores the row.
func (s *PostgresStore) SetDeletedAt(ctx context.Context, brokerID id.BrokerID, deletedAt *time.Time, now time.Time) error {
	query := `UPDATE brokers SET deleted_at = $2, updated_at = $3 WHERE id = $1`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(brokerID), deletedAt, now)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("set broker tombstone: %w", err)
	}
	return requireRowAffected(res)
}

// Delete physically removes the row. Used only by saga compensation.
func (s *PostgresStore) Delete(ctx context.Context, brokerID id.BrokerID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM brokers WHERE id = $1`, uuid.UUID(brokerID))
	if err != nil {
		return fmt.Errorf("delete broker: %w", err)
	}
	return requireRowAffected(res)
}

func scanBroker(row *sql.Row) (*models.Broker, error) {
	var (
		broker    models.Broker
		brokerID  uuid.UUID
		accountID uuid.UUID
		role      string
	)
	err := row.Scan(
		&brokerID,
		&accountID,
		&broker.Name,
		&broker.Email,
		&broker.TaxID,
		&role,
		&broker.DeletedAt,
		&broker.CreatedAt,
		&broker.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	broker.ID = id.BrokerID(brokerID)
	broker.AccountID = id.AccountID(accountID)
	broker.Role = models.BrokerRole(role)
	return &broker, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
