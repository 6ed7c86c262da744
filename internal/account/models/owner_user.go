package models

import (
	"time"

	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
)

// OwnerUserSource records which path created the row.
type OwnerUserSource string

const (
	OwnerUserSourceSignup   OwnerUserSource = "signup"
	OwnerUserSourceRecovery OwnerUserSource = "recovery"
)

func (s OwnerUserSource) IsValid() bool {
	return s == OwnerUserSourceSignup || s == OwnerUserSourceRecovery
}

// BillingProfile is the denormalized snapshot of the fields the payment
// gateway will eventually need. Captured at creation so a later gateway
// call does not depend on the live row still matching what the user signed
// up with.
type BillingProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	TaxID string `json:"tax_id"`
	Phone string `json:"phone"`
}

// OwnerUser is the billing-facing identity for the person who signed up.
// It is distinct from the authentication principal (linked later via
// PrincipalID) and from the Broker seat.
//
// Invariants:
//   - Name and Email are non-empty
//   - Email and TaxID are unique among non-tombstoned rows (store-enforced)
//   - Source is signup or recovery
//   - PrincipalID is nil until the authentication principal exists
type OwnerUser struct {
	ID             id.OwnerUserID  `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	TaxID          string          `json:"tax_id"`
	Phone          string          `json:"phone"`
	PrincipalID    *id.PrincipalID `json:"principal_id,omitempty"`
	BillingProfile BillingProfile  `json:"billing_profile"`
	Source         OwnerUserSource `json:"source"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func NewOwnerUser(ownerUserID id.OwnerUserID, name, email, taxID, phone string, source OwnerUserSource, now time.Time) (*OwnerUser, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner user name cannot be empty")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner user email cannot be empty")
	}
	if !source.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner user source must be signup or recovery")
	}
	return &OwnerUser{
		ID:    ownerUserID,
		Name:  name,
		Email: email,
		TaxID: taxID,
		Phone: phone,
		BillingProfile: BillingProfile{
			Name:  name,
			Email: email,
			TaxID: taxID,
			Phone: phone,
		},
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// LinkPrincipal ties the row to its authentication principal.
func (u *OwnerUser) LinkPrincipal(principalID id.PrincipalID, now time.Time) {
	u.PrincipalID = &principalID
	u.UpdatedAt = now
}

func (u *OwnerUser) IsDeleted() bool {
	return u.DeletedAt != nil
}
