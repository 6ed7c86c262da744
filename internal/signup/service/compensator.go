package service

import (
	"context"
	"errors"
	"log/slog"

	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/platform/audit"
	"brokerhub/pkg/platform/sentinel"
	"brokerhub/pkg/requestcontext"
)

// CreatedEntities collects the identifiers a saga run managed to create
// before failing. Nil fields were never reached.
type CreatedEntities struct {
	AccountID      *id.AccountID
	OwnerUserID    *id.OwnerUserID
	BrokerID       *id.BrokerID
	SubscriptionID *id.SubscriptionID
}

func (c CreatedEntities) IsEmpty() bool {
	return c.AccountID == nil && c.OwnerUserID == nil && c.BrokerID == nil && c.SubscriptionID == nil
}

// Compensator reverses a partially completed signup by physically deleting
// the rows created so far, in reverse dependency order. Physical deletes are
// correct here: the rows never reached a state any other component observed,
// so there is nothing to tombstone for.
type Compensator struct {
	accounts       AccountStore
	owners         OwnerUserStore
	brokers        BrokerStore
	subscriptions  SubscriptionStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type CompensatorOption func(c *Compensator)

func CompensatorWithLogger(logger *slog.Logger) CompensatorOption {
	return func(c *Compensator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func CompensatorWithAuditPublisher(publisher AuditPublisher) CompensatorOption {
	return func(c *Compensator) {
		c.auditPublisher = publisher
	}
}

func NewCompensator(accounts AccountStore, owners OwnerUserStore, brokers BrokerStore, subscriptions SubscriptionStore, opts ...CompensatorOption) *Compensator {
	c := &Compensator{
		accounts:      accounts,
		owners:        owners,
		brokers:       brokers,
		subscriptions: subscriptions,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compensate deletes the created rows in reverse dependency order:
// Subscription, Broker, Account, Owner-User. Each deletion is best-effort
// and independently logged; one failure does not stop the others, because
// partial compensation beats none.
//
// The Owner-User is the exception: if an authentication principal has
// already been linked to it, the row is NOT deleted. The principal lives in
// the external identity provider and cannot be removed from here, so
// deleting the local row would strand the principal with no local identity
// at all. That case is reported as an orphaned identity and requires manual
// operator cleanup.
func (c *Compensator) Compensate(ctx context.Context, created CreatedEntities) error {
	if created.IsEmpty() {
		return nil
	}

	if created.SubscriptionID != nil {
		c.deleteStep(ctx, "subscription", created.SubscriptionID.String(), func() error {
			return c.subscriptions.Delete(ctx, *created.SubscriptionID)
		})
	}
	if created.BrokerID != nil {
		c.deleteStep(ctx, "broker", created.BrokerID.String(), func() error {
			return c.brokers.Delete(ctx, *created.BrokerID)
		})
	}
	if created.AccountID != nil {
		c.deleteStep(ctx, "account", created.AccountID.String(), func() error {
			return c.accounts.Delete(ctx, *created.AccountID)
		})
	}
	if created.OwnerUserID != nil {
		return c.compensateOwnerUser(ctx, *created.OwnerUserID)
	}
	return nil
}

func (c *Compensator) compensateOwnerUser(ctx context.Context, ownerUserID id.OwnerUserID) error {
	user, err := c.owners.FindByID(ctx, ownerUserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		// Cannot verify principal linkage, so deleting blind is not safe.
		// Leave the row for a retried compensation or operator review.
		c.reportStepFailure(ctx, "owner_user", ownerUserID.String(), err)
		return nil
	}

	if user.PrincipalID != nil {
		c.logger.ErrorContext(ctx, "orphaned identity principal, manual cleanup required",
			"owner_user_id", ownerUserID,
			"principal_id", user.PrincipalID,
			"email", user.Email,
		)
		c.emit(ctx, audit.EventOrphanedIdentity, audit.Event{
			Subject:     ownerUserID.String(),
			OwnerUserID: ownerUserID.String(),
			PrincipalID: user.PrincipalID.String(),
			Email:       user.Email,
		})
		return dErrors.New(dErrors.CodeOrphanedIdentity,
			"an identity principal is already linked to this signup and must be removed manually")
	}

	c.deleteStep(ctx, "owner_user", ownerUserID.String(), func() error {
		return c.owners.Delete(ctx, ownerUserID)
	})
	return nil
}

func (c *Compensator) deleteStep(ctx context.Context, entity, entityID string, del func() error) {
	err := del()
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		c.logger.InfoContext(ctx, "compensation deleted entity", "entity", entity, "entity_id", entityID)
		return
	}
	c.reportStepFailure(ctx, entity, entityID, err)
}

func (c *Compensator) reportStepFailure(ctx context.Context, entity, entityID string, err error) {
	c.logger.ErrorContext(ctx, "compensation step failed",
		"entity", entity,
		"entity_id", entityID,
		"error", err.Error(),
	)
	c.emit(ctx, audit.EventCompensationStepFailed, audit.Event{
		Subject: entityID,
		Reason:  entity,
	})
}

func (c *Compensator) emit(ctx context.Context, event audit.AuditEvent, base audit.Event) {
	if c.auditPublisher == nil {
		return
	}
	base.Category = event.Category()
	base.Timestamp = requestcontext.Now(ctx)
	base.Action = string(event)
	base.RequestID = requestcontext.RequestID(ctx)
	_ = c.auditPublisher.Emit(ctx, base)
}
