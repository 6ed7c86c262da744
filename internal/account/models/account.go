// Package models holds the provisioning aggregate types. Constructors enforce
// structural invariants; cross-entity rules (last-owner protection, restore
// preconditions) are enforced by the services that see both rows.
package models

import (
	"time"

	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
)

// AccountKind distinguishes a solo broker from an agency organization.
type AccountKind string

const (
	AccountKindIndividual AccountKind = "individual"
	AccountKindAgency     AccountKind = "agency"
)

func (k AccountKind) IsValid() bool {
	return k == AccountKindIndividual || k == AccountKindAgency
}

// Account is the billing and organization root.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Kind is individual or agency
//   - SeatLimit is positive
//   - An account is never tombstoned directly; its lifecycle is implied by
//     its subscription
//
// PrimaryBrokerID is a convenience back-reference set best-effort after the
// owner broker exists. It is not correctness-bearing; readers must tolerate
// it being nil.
type Account struct {
	ID              id.AccountID `json:"id"`
	Name            string       `json:"name"`
	Kind            AccountKind  `json:"kind"`
	TaxID           string       `json:"tax_id"`
	SeatLimit       int          `json:"seat_limit"`
	PrimaryBrokerID *id.BrokerID `json:"primary_broker_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func NewAccount(accountID id.AccountID, name string, kind AccountKind, taxID string, seatLimit int, now time.Time) (*Account, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account name must be 128 characters or less")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account kind must be individual or agency")
	}
	if seatLimit <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account seat limit must be positive")
	}
	return &Account{
		ID:        accountID,
		Name:      name,
		Kind:      kind,
		TaxID:     taxID,
		SeatLimit: seatLimit,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetPrimaryBroker records the owner broker back-reference.
func (a *Account) SetPrimaryBroker(brokerID id.BrokerID, now time.Time) {
	a.PrimaryBrokerID = &brokerID
	a.UpdatedAt = now
}
