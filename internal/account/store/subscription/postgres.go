package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
	txcontext "brokerhub/pkg/platform/tx"
)

// PostgresStore persists subscriptions in PostgreSQL.
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

const subscriptionColumns = `id, account_id, plan_id, status, billing_responsible, trial_ends_at,
	next_charge_at, current_price, gateway_id, cancelled_at, cancel_reason, deleted_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(sub.ID),
		uuid.UUID(sub.AccountID),
		int64(sub.PlanID),
		string(sub.Status),
		string(sub.BillingResponsible),
		sub.TrialEndsAt,
		sub.NextChargeAt,
		sub.CurrentPrice.String(),
		sub.GatewayID,
		sub.CancelledAt,
		sub.CancelReason,
		sub.DeletedAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// FindByID returns the row whether or not it is tombstoned.
func (s *PostgresStore) FindByID(ctx context.Context, subID id.SubscriptionID) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(subID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return sub, nil
}

// FindLiveByAccount returns the non-tombstoned subscription for the account.
func (s *PostgresStore) FindLiveByAccount(ctx context.Context, accountID id.AccountID) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE account_id = $1 AND deleted_at IS NULL`
	sub, err := scanSubscription(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(accountID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find subscription by account: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) Update(ctx context.Context, sub *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET status = $2, billing_responsible = $3, trial_ends_at = $4, next_charge_at = $5,
		    current_price = $6, gateway_id = $7, cancelled_at = $8, cancel_reason = $9,
		    deleted_at = $10, updated_at = $11
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(sub.ID),
		string(sub.Status),
		string(sub.BillingResponsible),
		sub.TrialEndsAt,
		sub.NextChargeAt,
		sub.CurrentPrice.String(),
		sub.GatewayID,
		sub.CancelledAt,
		sub.CancelReason,
		sub.DeletedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return requireRowAffected(res)
}

// SetDeletedAt writes the tombstone column; nil restores the row.
func (s *PostgresStore) SetDeletedAt(ctx context.Context, subID id.SubscriptionID, deletedAt *time.Time, now time.Time) error {
	query := `UPDATE subscriptions SET deleted_at = $2, updated_at = $3 WHERE id = $1`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(subID), deletedAt, now)
	if err != nil {
		return fmt.Errorf("set subscription tombstone: %w", err)
	}
	return requireRowAffected(res)
}

// Delete physically removes the row. Used only by saga compensation.
func (s *PostgresStore) Delete(ctx context.Context, subID id.SubscriptionID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, uuid.UUID(subID))
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return requireRowAffected(res)
}

func scanSubscription(row *sql.Row) (*models.Subscription, error) {
	var (
		sub         models.Subscription
		subID       uuid.UUID
		accountID   uuid.UUID
		planID      int64
		status      string
		responsible string
		price       string
	)
	err := row.Scan(
		&subID,
		&accountID,
		&planID,
		&status,
		&responsible,
		&sub.TrialEndsAt,
		&sub.NextChargeAt,
		&price,
		&sub.GatewayID,
		&sub.CancelledAt,
		&sub.CancelReason,
		&sub.DeletedAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.ID = id.SubscriptionID(subID)
	sub.AccountID = id.AccountID(accountID)
	sub.PlanID = id.PlanID(planID)
	sub.Status = models.SubscriptionStatus(status)
	sub.BillingResponsible = models.BillingResponsible(responsible)
	sub.CurrentPrice, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse subscription price: %w", err)
	}
	return &sub, nil
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
