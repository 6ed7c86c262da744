package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
	txcontext "brokerhub/pkg/platform/tx"
)

// PostgresStore persists accounts in PostgreSQL.
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

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, name, kind, tax_id, seat_limit, primary_broker_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(account.ID),
		account.Name,
		string(account.Kind),
		account.TaxID,
		account.SeatLimit,
		brokerIDOrNil(account.PrimaryBrokerID),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	query := `
		SELECT id, name, kind, tax_id, seat_limit, primary_broker_id, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	account, err := scanAccount(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(accountID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) Update(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, kind = $3, tax_id = $4, seat_limit = $5, primary_broker_id = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(account.ID),
		account.Name,
		string(account.Kind),
		account.TaxID,
		account.SeatLimit,
		brokerIDOrNil(account.PrimaryBrokerID),
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return requireRowAffected(res)
}

// Delete physically removes the row. Used only by saga compensation.
func (s *PostgresStore) Delete(ctx context.Context, accountID id.AccountID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, uuid.UUID(accountID))
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireRowAffected(res)
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		account   models.Account
		accountID uuid.UUID
		kind      string
		primary   *uuid.UUID
	)
	err := row.Scan(
		&accountID,
		&account.Name,
		&kind,
		&account.TaxID,
		&account.SeatLimit,
		&primary,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.ID = id.AccountID(accountID)
	account.Kind = models.AccountKind(kind)
	if primary != nil {
		brokerID := id.BrokerID(*primary)
		account.PrimaryBrokerID = &brokerID
	}
	return &account, nil
}

func brokerIDOrNil(brokerID *id.BrokerID) *uuid.UUID {
	if brokerID == nil {
		return nil
	}
	u := uuid.UUID(*brokerID)
	return &u
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
