package audit

import "time"

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/billing significance.
	// These require durable storage and long retention.
	// Examples: subscription cancellations, tombstone writes, restores.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// Examples: orphaned identity principals, denied session establishment.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: signup completion, compensation runs, recovery creations.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key lifecycle actions. Keep
// it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the primary entity the event is about, usually an
	// owner-user or subscription id.
	Subject string
	Action  string
	Reason  string
	// Correlation and enrichment fields.
	AccountID      string
	OwnerUserID    string
	SubscriptionID string
	PrincipalID    string
	Email          string
	RequestID      string
}

type AuditEvent string

const (
	// Signup saga events
	EventSignupCompleted        AuditEvent = "signup_completed"
	EventSignupCompensated      AuditEvent = "signup_compensated"
	EventSignupRejected         AuditEvent = "signup_rejected"
	EventOrphanedIdentity       AuditEvent = "orphaned_identity_detected"
	EventCompensationStepFailed AuditEvent = "compensation_step_failed"

	// Session and recovery events
	EventSessionEstablished AuditEvent = "session_established"
	EventSessionDenied      AuditEvent = "session_denied"
	EventOwnerUserRecovered AuditEvent = "owner_user_recovered"
	EventPrincipalLinked    AuditEvent = "principal_linked"

	// Cancellation saga events
	EventSubscriptionCancelled AuditEvent = "subscription_cancelled"
	EventLocalStateLagging     AuditEvent = "local_state_lagging"

	// Ledger events
	EventEntityTombstoned AuditEvent = "entity_tombstoned"
	EventEntityRestored   AuditEvent = "entity_restored"
)

// eventCategories routes each event to its category. Events absent from the
// map default to operations.
var eventCategories = map[AuditEvent]EventCategory{
	// Cancellations and tombstones carry billing significance.
	EventSubscriptionCancelled: CategoryCompliance,
	EventEntityTombstoned:      CategoryCompliance,
	EventEntityRestored:        CategoryCompliance,

	// Failures that need an operator or a security review.
	EventOrphanedIdentity: CategorySecurity,
	EventSessionDenied:    CategorySecurity,

	EventSignupCompleted:        CategoryOperations,
	EventSignupCompensated:      CategoryOperations,
	EventSignupRejected:         CategoryOperations,
	EventCompensationStepFailed: CategoryOperations,
	EventSessionEstablished:     CategoryOperations,
	EventOwnerUserRecovered:     CategoryOperations,
	EventPrincipalLinked:        CategoryOperations,
	EventLocalStateLagging:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
