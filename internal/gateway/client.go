// Package gateway talks to the payment gateway's provisioning endpoint.
package gateway

import (
	"context"
	"time"

	id "brokerhub/pkg/domain"
)

// Actions accepted by the provisioning endpoint.
const (
	ActionProvisionCustomer  = "provision_customer"
	ActionCancelSubscription = "cancel_subscription"
)

// CustomerData carries the billing identity fields the gateway needs.
type CustomerData struct {
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	TaxID          string            `json:"taxId"`
	Phone          string            `json:"phone"`
	OwnerUserID    id.OwnerUserID    `json:"ownerUserId"`
	SubscriptionID id.SubscriptionID `json:"subscriptionId"`
	Timestamp      time.Time         `json:"timestamp"`
}

// SubscriptionData identifies the subscription being cancelled.
type SubscriptionData struct {
	ID            id.SubscriptionID `json:"id"`
	GatewayID     string            `json:"gatewayId,omitempty"`
	CurrentStatus string            `json:"currentStatus"`
	PlanName      string            `json:"planName"`
	CancelReason  string            `json:"cancelReason,omitempty"`
}

// Request is the provisioning endpoint's payload.
type Request struct {
	Action       string            `json:"action"`
	Data         CustomerData      `json:"data"`
	Subscription *SubscriptionData `json:"subscription,omitempty"`
}

// ProvisionResult is returned on a successful provision_customer call.
type ProvisionResult struct {
	CustomerID string `json:"customerId"`
}

// Notifier is the outbound surface the sagas depend on. A 2xx gateway
// response returns nil; any other response or transport failure returns a
// coded error and callers must not mutate local state for cancellations.
type Notifier interface {
	ProvisionCustomer(ctx context.Context, data CustomerData) (*ProvisionResult, error)
	CancelSubscription(ctx context.Context, data CustomerData, sub SubscriptionData) error
}
