package store

import (
	"context"

	"github.com/shopspring/decimal"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
)

// PlanStore is the subset of the plan store seeding needs.
type PlanStore interface {
	Upsert(ctx context.Context, plan *models.Plan) error
}

// DefaultPlans returns the built-in plan catalog. Production deployments
// manage plans out of band; this keeps local and test environments usable.
func DefaultPlans() []*models.Plan {
	return []*models.Plan{
		{
			ID:           id.PlanID(1),
			Code:         "solo",
			Name:         "Solo",
			Kind:         models.AccountKindIndividual,
			MonthlyPrice: decimal.NewFromInt(49),
			SeatLimit:    1,
			Active:       true,
		},
		{
			ID:           id.PlanID(2),
			Code:         "agency-starter",
			Name:         "Agency Starter",
			Kind:         models.AccountKindAgency,
			MonthlyPrice: decimal.NewFromInt(199),
			SeatLimit:    5,
			Active:       true,
		},
		{
			ID:           id.PlanID(3),
			Code:         "agency-plus",
			Name:         "Agency Plus",
			Kind:         models.AccountKindAgency,
			MonthlyPrice: decimal.NewFromInt(399),
			SeatLimit:    20,
			Active:       true,
		},
	}
}

// SeedPlans writes the default plan catalog into the given store.
func SeedPlans(ctx context.Context, plans PlanStore) error {
	for _, p := range DefaultPlans() {
		if err := plans.Upsert(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
