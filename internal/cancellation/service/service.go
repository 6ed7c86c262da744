// Package service implements the cancellation saga. The ordering invariant
// is the whole point: the payment gateway is told first, local state is
// tombstoned second. A gateway that lags local state would keep charging a
// customer the product already shows as cancelled; local state lagging the
// gateway is a retryable inconsistency.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"brokerhub/internal/account/ledger"
	"brokerhub/internal/account/models"
	"brokerhub/internal/cancellation/metrics"
	"brokerhub/internal/gateway"
	"brokerhub/internal/platform/telemetry"
	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/platform/audit"
	"brokerhub/pkg/platform/sentinel"
	"brokerhub/pkg/requestcontext"
)

type OwnerUserStore interface {
	FindByID(ctx context.Context, userID id.OwnerUserID) (*models.OwnerUser, error)
}

type SubscriptionStore interface {
	FindByID(ctx context.Context, subID id.SubscriptionID) (*models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
}

type PlanStore interface {
	FindByID(ctx context.Context, planID id.PlanID) (*models.Plan, error)
}

// Tombstoner is the slice of the soft-delete ledger the saga writes through.
type Tombstoner interface {
	SoftDelete(ctx context.Context, entityType ledger.EntityType, entityID uuid.UUID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Input carries one cancellation request.
type Input struct {
	AccountID              id.AccountID      `json:"account_id"`
	SubscriptionID         id.SubscriptionID `json:"subscription_id"`
	ExternalSubscriptionID string            `json:"external_subscription_id,omitempty"`
	OwnerUserID            id.OwnerUserID    `json:"owner_user_id"`
	Reason                 string            `json:"reason"`
}

func (in *Input) Validate() error {
	if in.AccountID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "account id is required")
	}
	if in.SubscriptionID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "subscription id is required")
	}
	if in.OwnerUserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "owner user id is required")
	}
	return nil
}

// Service orchestrates the cancellation saga.
type Service struct {
	owners         OwnerUserStore
	subscriptions  SubscriptionStore
	plans          PlanStore
	notifier       gateway.Notifier
	tombstones     Tombstoner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(owners OwnerUserStore, subscriptions SubscriptionStore, plans PlanStore, notifier gateway.Notifier, tombstones Tombstoner, opts ...Option) *Service {
	s := &Service{
		owners:        owners,
		subscriptions: subscriptions,
		plans:         plans,
		notifier:      notifier,
		tombstones:    tombstones,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cancel runs the saga. Rows are loaded including tombstoned ones so a
// retried cancellation can finish the local half a previous run left
// behind; the gateway treats the repeated call as idempotent.
func (s *Service) Cancel(ctx context.Context, input Input) error {
	ctx, span := telemetry.StartSpan(ctx, "cancellation", "cancel")
	defer span.End()

	err := s.cancel(ctx, input)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

func (s *Service) cancel(ctx context.Context, input Input) error {
	start := time.Now()
	defer s.observeSaga(start)

	if err := input.Validate(); err != nil {
		return err
	}

	owner, err := s.owners.FindByID(ctx, input.OwnerUserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "owner user not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load owner user")
	}

	sub, err := s.subscriptions.FindByID(ctx, input.SubscriptionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "subscription not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load subscription")
	}
	if sub.AccountID != input.AccountID {
		return dErrors.New(dErrors.CodeInvalidInput, "subscription does not belong to the account")
	}

	if sub.IsCancelled() && sub.IsDeleted() && owner.IsDeleted() {
		// A previous run finished everything; nothing to send or write.
		return nil
	}

	// Gateway first, always. The local store must never show cancelled
	// state the gateway was not told about.
	if err := s.notifyGateway(ctx, input, owner, sub); err != nil {
		s.incrementGatewayFailure()
		s.logger.ErrorContext(ctx, "cancellation aborted, gateway call failed",
			"subscription_id", input.SubscriptionID,
			"error", err.Error(),
		)
		return err
	}

	if !sub.IsCancelled() {
		if err := sub.CanCancel(); err != nil {
			return err
		}
		sub.ApplyCancellation(input.Reason, requestcontext.Now(ctx))
		if err := s.subscriptions.Update(ctx, sub); err != nil {
			s.reportLaggingState(ctx, input, "subscription_status", err)
		}
	}

	s.tombstone(ctx, input, ledger.EntitySubscription, uuid.UUID(input.SubscriptionID), "subscription")
	s.tombstone(ctx, input, ledger.EntityOwnerUser, uuid.UUID(input.OwnerUserID), "owner_user")

	s.incrementCancelled()
	s.logAudit(ctx, audit.EventSubscriptionCancelled, input)
	return nil
}

func (s *Service) notifyGateway(ctx context.Context, input Input, owner *models.OwnerUser, sub *models.Subscription) error {
	planName := ""
	if plan, err := s.plans.FindByID(ctx, sub.PlanID); err == nil {
		planName = plan.Name
	}

	gatewayID := input.ExternalSubscriptionID
	if gatewayID == "" && sub.GatewayID != nil {
		gatewayID = *sub.GatewayID
	}

	return s.notifier.CancelSubscription(ctx,
		gateway.CustomerData{
			Name:           owner.BillingProfile.Name,
			Email:          owner.BillingProfile.Email,
			TaxID:          owner.BillingProfile.TaxID,
			Phone:          owner.BillingProfile.Phone,
			OwnerUserID:    owner.ID,
			SubscriptionID: sub.ID,
			Timestamp:      requestcontext.Now(ctx),
		},
		gateway.SubscriptionData{
			ID:            sub.ID,
			GatewayID:     gatewayID,
			CurrentStatus: string(sub.Status),
			PlanName:      planName,
			CancelReason:  input.Reason,
		},
	)
}

// tombstone writes one tombstone best-effort. A failure here leaves local
// state lagging the gateway, which is recoverable by retrying the
// cancellation, so it is reported but never returned as a saga failure.
func (s *Service) tombstone(ctx context.Context, input Input, entityType ledger.EntityType, entityID uuid.UUID, entity string) {
	if err := s.tombstones.SoftDelete(ctx, entityType, entityID); err != nil {
		s.reportLaggingState(ctx, input, entity, err)
	}
}

func (s *Service) reportLaggingState(ctx context.Context, input Input, entity string, err error) {
	s.incrementLaggingTombstone()
	s.logger.ErrorContext(ctx, "local state lags the gateway, retry the cancellation",
		"entity", entity,
		"subscription_id", input.SubscriptionID,
		"owner_user_id", input.OwnerUserID,
		"error", err.Error(),
	)
	s.emit(ctx, audit.EventLocalStateLagging, audit.Event{
		Subject:        input.SubscriptionID.String(),
		SubscriptionID: input.SubscriptionID.String(),
		OwnerUserID:    input.OwnerUserID.String(),
		Reason:         entity,
	})
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, input Input) {
	s.logger.InfoContext(ctx, string(event),
		"account_id", input.AccountID,
		"subscription_id", input.SubscriptionID,
		"owner_user_id", input.OwnerUserID,
		"reason", input.Reason,
		"event", string(event),
		"log_type", "audit",
	)
	s.emit(ctx, event, audit.Event{
		Subject:        input.SubscriptionID.String(),
		AccountID:      input.AccountID.String(),
		SubscriptionID: input.SubscriptionID.String(),
		OwnerUserID:    input.OwnerUserID.String(),
		Reason:         input.Reason,
	})
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, base audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	base.Category = event.Category()
	base.Timestamp = requestcontext.Now(ctx)
	base.Action = string(event)
	base.RequestID = requestcontext.RequestID(ctx)
	_ = s.auditPublisher.Emit(ctx, base)
}

func (s *Service) incrementCancelled() {
	if s.metrics != nil {
		s.metrics.IncrementCancelled()
	}
}

func (s *Service) incrementGatewayFailure() {
	if s.metrics != nil {
		s.metrics.IncrementGatewayFailure()
	}
}

func (s *Service) incrementLaggingTombstone() {
	if s.metrics != nil {
		s.metrics.IncrementLaggingTombstone()
	}
}

func (s *Service) observeSaga(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveSaga(start)
	}
}
