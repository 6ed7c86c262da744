package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
)

// SubscriptionStatus is the billing state of an account.
type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status change is allowed. Cancelled is
// terminal; everything else can move forward or be cancelled.
func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	if s == SubscriptionStatusCancelled {
		return false
	}
	switch target {
	case SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCancelled:
		return true
	case SubscriptionStatusTrial:
		return false
	}
	return false
}

// BillingResponsible names who pays for the account.
type BillingResponsible string

const (
	BillingResponsibleSelf        BillingResponsible = "self"
	BillingResponsibleAgencyAdmin BillingResponsible = "agency-admin"
)

// Subscription is the billing state for an Account.
//
// Invariants:
//   - GatewayID is set only after a successful gateway call, never guessed
//     or pre-assigned locally
//   - Status transitions follow CanTransitionTo; cancelled is terminal
//   - CancelledAt and CancelReason are set together with the cancelled status
type Subscription struct {
	ID                 id.SubscriptionID  `json:"id"`
	AccountID          id.AccountID       `json:"account_id"`
	PlanID             id.PlanID          `json:"plan_id"`
	Status             SubscriptionStatus `json:"status"`
	BillingResponsible BillingResponsible `json:"billing_responsible"`
	TrialEndsAt        time.Time          `json:"trial_ends_at"`
	NextChargeAt       *time.Time         `json:"next_charge_at,omitempty"`
	CurrentPrice       decimal.Decimal    `json:"current_price"`
	GatewayID          *string            `json:"gateway_id,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason       string             `json:"cancel_reason,omitempty"`
	DeletedAt          *time.Time         `json:"deleted_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// NewTrialSubscription creates a subscription in trial state with the given
// trial window.
func NewTrialSubscription(subscriptionID id.SubscriptionID, accountID id.AccountID, plan *Plan, responsible BillingResponsible, trialEndsAt time.Time, now time.Time) (*Subscription, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subscription account id cannot be empty")
	}
	if plan == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subscription plan cannot be nil")
	}
	if !trialEndsAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "trial window must end in the future")
	}
	return &Subscription{
		ID:                 subscriptionID,
		AccountID:          accountID,
		PlanID:             plan.ID,
		Status:             SubscriptionStatusTrial,
		BillingResponsible: responsible,
		TrialEndsAt:        trialEndsAt,
		CurrentPrice:       plan.MonthlyPrice,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// CanCancel checks whether the subscription can transition to cancelled.
// Use with ApplyCancellation after the gateway has acknowledged the call.
func (s *Subscription) CanCancel() error {
	if !s.Status.CanTransitionTo(SubscriptionStatusCancelled) {
		return dErrors.New(dErrors.CodeInvariantViolation, "subscription is already cancelled")
	}
	return nil
}

// ApplyCancellation transitions the subscription to cancelled state.
// Call CanCancel first to validate the transition.
func (s *Subscription) ApplyCancellation(reason string, now time.Time) {
	s.Status = SubscriptionStatusCancelled
	s.CancelledAt = &now
	s.CancelReason = reason
	s.UpdatedAt = now
}

// SetGatewayID records the gateway's subscription identifier after a
// successful provisioning call.
func (s *Subscription) SetGatewayID(gatewayID string, now time.Time) {
	s.GatewayID = &gatewayID
	s.UpdatedAt = now
}

func (s *Subscription) IsDeleted() bool {
	return s.DeletedAt != nil
}

func (s *Subscription) IsCancelled() bool {
	return s.Status == SubscriptionStatusCancelled
}
