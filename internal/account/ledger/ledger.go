// Package ledger centralizes the soft-delete convention: every mutable
// entity carries a nullable tombstone timestamp, and all components go
// through these primitives instead of repeating the null-check predicate
// in ad hoc queries.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/platform/sentinel"
	"brokerhub/pkg/requestcontext"
)

// EntityType names a tombstone-bearing entity.
type EntityType string

const (
	EntityOwnerUser    EntityType = "owner_user"
	EntityBroker       EntityType = "broker"
	EntitySubscription EntityType = "subscription"
)

// Store interfaces are the minimal per-entity surface the ledger needs.
// Accounts never carry a tombstone; the ledger only reads them to check
// restore preconditions.

type AccountStore interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
}

type OwnerUserStore interface {
	FindByID(ctx context.Context, userID id.OwnerUserID) (*models.OwnerUser, error)
	SetDeletedAt(ctx context.Context, userID id.OwnerUserID, deletedAt *time.Time, now time.Time) error
}

type BrokerStore interface {
	FindByID(ctx context.Context, brokerID id.BrokerID) (*models.Broker, error)
	SetDeletedAt(ctx context.Context, brokerID id.BrokerID, deletedAt *time.Time, now time.Time) error
	CountLiveOwners(ctx context.Context, accountID id.AccountID) (int, error)
}

type SubscriptionStore interface {
	FindByID(ctx context.Context, subID id.SubscriptionID) (*models.Subscription, error)
	FindLiveByAccount(ctx context.Context, accountID id.AccountID) (*models.Subscription, error)
	SetDeletedAt(ctx context.Context, subID id.SubscriptionID, deletedAt *time.Time, now time.Time) error
}

// Ledger applies and clears tombstones with the cross-entity invariants
// enforced in one place.
type Ledger struct {
	accounts      AccountStore
	owners        OwnerUserStore
	brokers       BrokerStore
	subscriptions SubscriptionStore
	logger        *slog.Logger
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func New(accounts AccountStore, owners OwnerUserStore, brokers BrokerStore, subscriptions SubscriptionStore, opts ...Option) *Ledger {
	l := &Ledger{
		accounts:      accounts,
		owners:        owners,
		brokers:       brokers,
		subscriptions: subscriptions,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SoftDelete sets the tombstone on the entity. Tombstoning an already
// tombstoned row is a no-op. Tombstoning the last live owner broker of an
// account with a non-cancelled subscription is rejected.
func (l *Ledger) SoftDelete(ctx context.Context, entityType EntityType, entityID uuid.UUID) error {
	now := requestcontext.Now(ctx)

	switch entityType {
	case EntityOwnerUser:
		return l.setTombstone(ctx, entityType, func() error {
			return l.owners.SetDeletedAt(ctx, id.OwnerUserID(entityID), &now, now)
		})
	case EntityBroker:
		if err := l.checkLastOwner(ctx, id.BrokerID(entityID)); err != nil {
			return err
		}
		return l.setTombstone(ctx, entityType, func() error {
			return l.brokers.SetDeletedAt(ctx, id.BrokerID(entityID), &now, now)
		})
	case EntitySubscription:
		return l.setTombstone(ctx, entityType, func() error {
			return l.subscriptions.SetDeletedAt(ctx, id.SubscriptionID(entityID), &now, now)
		})
	}
	return dErrors.Newf(dErrors.CodeInvalidInput, "unknown entity type %q", entityType)
}

// Restore clears the tombstone. An owner broker may only be restored while
// its account still exists and keeps at least one other live owner.
func (l *Ledger) Restore(ctx context.Context, entityType EntityType, entityID uuid.UUID) error {
	now := requestcontext.Now(ctx)

	switch entityType {
	case EntityOwnerUser:
		return l.setTombstone(ctx, entityType, func() error {
			return l.owners.SetDeletedAt(ctx, id.OwnerUserID(entityID), nil, now)
		})
	case EntityBroker:
		if err := l.checkRestorePreconditions(ctx, id.BrokerID(entityID)); err != nil {
			return err
		}
		return l.setTombstone(ctx, entityType, func() error {
			return l.brokers.SetDeletedAt(ctx, id.BrokerID(entityID), nil, now)
		})
	case EntitySubscription:
		sub, err := l.subscriptions.FindByID(ctx, id.SubscriptionID(entityID))
		if err != nil {
			return l.wrapLookup(entityType, err)
		}
		if _, err := l.accounts.FindByID(ctx, sub.AccountID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeInvariantViolation, "cannot restore subscription of a missing account")
			}
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "account lookup failed")
		}
		return l.setTombstone(ctx, entityType, func() error {
			return l.subscriptions.SetDeletedAt(ctx, id.SubscriptionID(entityID), nil, now)
		})
	}
	return dErrors.Newf(dErrors.CodeInvalidInput, "unknown entity type %q", entityType)
}

// IsDeleted reports whether the entity carries a tombstone. A missing row is
// not deleted (there is nothing to classify); lookup failures surface as
// errors instead of a silent false.
func (l *Ledger) IsDeleted(ctx context.Context, entityType EntityType, entityID uuid.UUID) (bool, error) {
	var (
		deletedAt *time.Time
		err       error
	)
	switch entityType {
	case EntityOwnerUser:
		var u *models.OwnerUser
		if u, err = l.owners.FindByID(ctx, id.OwnerUserID(entityID)); err == nil {
			deletedAt = u.DeletedAt
		}
	case EntityBroker:
		var b *models.Broker
		if b, err = l.brokers.FindByID(ctx, id.BrokerID(entityID)); err == nil {
			deletedAt = b.DeletedAt
		}
	case EntitySubscription:
		var s *models.Subscription
		if s, err = l.subscriptions.FindByID(ctx, id.SubscriptionID(entityID)); err == nil {
			deletedAt = s.DeletedAt
		}
	default:
		return false, dErrors.Newf(dErrors.CodeInvalidInput, "unknown entity type %q", entityType)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "tombstone lookup failed")
	}
	return deletedAt != nil, nil
}

func (l *Ledger) setTombstone(_ context.Context, entityType EntityType, write func() error) error {
	if err := write(); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "%s not found", entityType)
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "tombstone write failed")
	}
	return nil
}

// checkLastOwner rejects tombstoning the last live owner of an account whose
// subscription is not cancelled.
func (l *Ledger) checkLastOwner(ctx context.Context, brokerID id.BrokerID) error {
	broker, err := l.brokers.FindByID(ctx, brokerID)
	if err != nil {
		return l.wrapLookup(EntityBroker, err)
	}
	if !broker.IsOwner() || broker.IsDeleted() {
		return nil
	}

	count, err := l.brokers.CountLiveOwners(ctx, broker.AccountID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "owner count failed")
	}
	if count > 1 {
		return nil
	}

	sub, err := l.subscriptions.FindLiveByAccount(ctx, broker.AccountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// No live subscription, account is winding down anyway.
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "subscription lookup failed")
	}
	if !sub.IsCancelled() {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot tombstone the last owner of an active account")
	}
	return nil
}

func (l *Ledger) checkRestorePreconditions(ctx context.Context, brokerID id.BrokerID) error {
	broker, err := l.brokers.FindByID(ctx, brokerID)
	if err != nil {
		return l.wrapLookup(EntityBroker, err)
	}
	if _, err := l.accounts.FindByID(ctx, broker.AccountID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeInvariantViolation, "cannot restore broker of a missing account")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "account lookup failed")
	}
	if broker.IsOwner() {
		count, err := l.brokers.CountLiveOwners(ctx, broker.AccountID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "owner count failed")
		}
		if count < 1 {
			return dErrors.New(dErrors.CodeInvariantViolation, "restoring an owner requires another active owner")
		}
	}
	return nil
}

func (l *Ledger) wrapLookup(entityType EntityType, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "%s not found", entityType)
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "lookup failed")
}
