package models

import (
	"time"

	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
)

// BrokerRole is the seat role within an account.
type BrokerRole string

const (
	BrokerRoleOwner BrokerRole = "owner"
	BrokerRoleAdmin BrokerRole = "admin"
	BrokerRoleAgent BrokerRole = "agent"
)

func (r BrokerRole) IsValid() bool {
	switch r {
	case BrokerRoleOwner, BrokerRoleAdmin, BrokerRoleAgent:
		return true
	}
	return false
}

// Broker is a seat within an Account. Email is the join key session
// establishment and recovery resolve against, so it is unique across the
// system among non-tombstoned rows.
//
// Invariants:
//   - AccountID is set and immutable after construction
//   - Name and Email are non-empty
//   - Role is owner, admin, or agent
//   - Every account with a non-cancelled subscription keeps at least one
//     live owner broker (enforced procedurally before tombstoning)
type Broker struct {
	ID        id.BrokerID  `json:"id"`
	AccountID id.AccountID `json:"account_id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	TaxID     string       `json:"tax_id"`
	Role      BrokerRole   `json:"role"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func NewBroker(brokerID id.BrokerID, accountID id.AccountID, name, email, taxID string, role BrokerRole, now time.Time) (*Broker, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "broker account id cannot be empty")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "broker name cannot be empty")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "broker email cannot be empty")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "broker role must be owner, admin, or agent")
	}
	return &Broker{
		ID:        brokerID,
		AccountID: accountID,
		Name:      name,
		Email:     email,
		TaxID:     taxID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (b *Broker) IsOwner() bool {
	return b.Role == BrokerRoleOwner
}

func (b *Broker) IsDeleted() bool {
	return b.DeletedAt != nil
}
