package models

import id "brokerhub/pkg/domain"

// Audit event payloads for the provisioning lifecycle. Services hand these
// to their audit emitters; the audit package serializes them as metadata.

type SignupCompleted struct {
	AccountID      id.AccountID
	OwnerUserID    id.OwnerUserID
	BrokerID       id.BrokerID
	SubscriptionID id.SubscriptionID
	PlanCode       string
}

type SignupCompensated struct {
	AccountID      id.AccountID
	OwnerUserID    id.OwnerUserID
	BrokerID       id.BrokerID
	SubscriptionID id.SubscriptionID
	FailedStep     string
}

// OrphanedIdentityDetected marks the case compensation cannot fix: an
// authentication principal exists but its signup was rolled back. Cleanup
// of the principal is a manual operator action.
type OrphanedIdentityDetected struct {
	OwnerUserID id.OwnerUserID
	PrincipalID id.PrincipalID
	Email       string
}

type OwnerUserRecovered struct {
	OwnerUserID id.OwnerUserID
	PrincipalID id.PrincipalID
	BrokerID    id.BrokerID
}

type SubscriptionCancelled struct {
	AccountID      id.AccountID
	SubscriptionID id.SubscriptionID
	OwnerUserID    id.OwnerUserID
	Reason         string
}

// LocalStateLagging records a tombstone write that failed after the gateway
// already acknowledged a cancellation. The local rows can be retombstoned
// later; the gateway call cannot be un-sent.
type LocalStateLagging struct {
	SubscriptionID id.SubscriptionID
	OwnerUserID    id.OwnerUserID
	Entity         string
}
