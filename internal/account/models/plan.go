package models

import (
	"github.com/shopspring/decimal"

	id "brokerhub/pkg/domain"
)

// Plan is a billable plan definition. Plans are reference data, seeded or
// managed out of band, and resolved by external code at signup.
type Plan struct {
	ID           id.PlanID       `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Kind         AccountKind     `json:"kind"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	SeatLimit    int             `json:"seat_limit"`
	Active       bool            `json:"active"`
}
