package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
)

// PostgresStore persists plans in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert inserts or replaces a plan, keyed by code. Used for seeding.
func (s *PostgresStore) Upsert(ctx context.Context, plan *models.Plan) error {
	query := `
		INSERT INTO plans (id, code, name, kind, monthly_price, seat_limit, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			monthly_price = EXCLUDED.monthly_price,
			seat_limit = EXCLUDED.seat_limit,
			active = EXCLUDED.active
	`
	_, err := s.db.ExecContext(ctx, query,
		int64(plan.ID),
		plan.Code,
		plan.Name,
		string(plan.Kind),
		plan.MonthlyPrice.String(),
		plan.SeatLimit,
		plan.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

// FindByCode returns the plan with the given code, case-insensitively.
func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*models.Plan, error) {
	query := `
		SELECT id, code, name, kind, monthly_price, seat_limit, active
		FROM plans
		WHERE lower(code) = lower($1)
	`
	return s.scanPlan(s.db.QueryRowContext(ctx, query, code))
}

// FindByID returns the plan with the given id.
func (s *PostgresStore) FindByID(ctx context.Context, planID id.PlanID) (*models.Plan, error) {
	query := `
		SELECT id, code, name, kind, monthly_price, seat_limit, active
		FROM plans
		WHERE id = $1
	`
	return s.scanPlan(s.db.QueryRowContext(ctx, query, int64(planID)))
}

func (s *PostgresStore) scanPlan(row *sql.Row) (*models.Plan, error) {
	var (
		plan   models.Plan
		planID int64
		kind   string
		price  string
	)
	err := row.Scan(
		&planID,
		&plan.Code,
		&plan.Name,
		&kind,
		&price,
		&plan.SeatLimit,
		&plan.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	plan.ID = id.PlanID(planID)
	plan.Kind = models.AccountKind(kind)
	plan.MonthlyPrice, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse plan price: %w", err)
	}
	return &plan, nil
}
