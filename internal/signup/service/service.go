// Package service implements the signup saga: sequential creation of the
// Account, Owner-User, Broker and trial Subscription rows through a remote
// store that offers no cross-entity transaction. Ordering, rollback and
// failure classification are explicit; see the compensator for the rollback
// half.
package service

import (
	"context"
	"log/slog"
	"time"

	"brokerhub/internal/account/models"
	"brokerhub/internal/signup/metrics"
	"brokerhub/pkg/attrs"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/audit"
	"brokerhub/pkg/requestcontext"
)

// defaultTrialDays is the trial window granted at signup.
const defaultTrialDays = 7

type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, accountID id.AccountID) error
}

type OwnerUserStore interface {
	Create(ctx context.Context, user *models.OwnerUser) error
	FindByID(ctx context.Context, userID id.OwnerUserID) (*models.OwnerUser, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	Delete(ctx context.Context, userID id.OwnerUserID) error
}

type BrokerStore interface {
	Create(ctx context.Context, broker *models.Broker) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByTaxID(ctx context.Context, taxID string) (bool, error)
	Delete(ctx context.Context, brokerID id.BrokerID) error
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub *models.Subscription) error
	Delete(ctx context.Context, subID id.SubscriptionID) error
}

type PlanStore interface {
	FindByCode(ctx context.Context, code string) (*models.Plan, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service orchestrates the signup saga.
type Service struct {
	accounts       AccountStore
	owners         OwnerUserStore
	brokers        BrokerStore
	subscriptions  SubscriptionStore
	plans          PlanStore
	validator      *Validator
	compensator    *Compensator
	trialDays      int
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

// WithTrialDays overrides the default 7-day trial window.
func WithTrialDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.trialDays = days
		}
	}
}

// New constructs a Service. The validator and compensator are built over the
// same stores so every component observes the same remote state.
func New(accounts AccountStore, owners OwnerUserStore, brokers BrokerStore, subscriptions SubscriptionStore, plans PlanStore, opts ...Option) *Service {
	s := &Service{
		accounts:      accounts,
		owners:        owners,
		brokers:       brokers,
		subscriptions: subscriptions,
		plans:         plans,
		trialDays:     defaultTrialDays,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = NewValidator(brokers, owners)
	s.compensator = NewCompensator(accounts, owners, brokers, subscriptions,
		CompensatorWithLogger(s.logger),
		CompensatorWithAuditPublisher(s.auditPublisher),
	)
	return s
}

// Compensator exposes the saga's rollback half for callers that must trigger
// it directly, such as an operator endpoint replaying a stuck signup.
func (s *Service) Compensator() *Compensator {
	return s.compensator
}

func (s *Service) trialWindow(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).Add(time.Duration(s.trialDays) * 24 * time.Hour)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	ownerUserID, _ := attrs.ExtractString(attributes, "owner_user_id")
	accountID, _ := attrs.ExtractString(attributes, "account_id")
	subscriptionID, _ := attrs.ExtractString(attributes, "subscription_id")
	email, _ := attrs.ExtractString(attributes, "email")
	reason, _ := attrs.ExtractString(attributes, "reason")
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Category:       event.Category(),
		Timestamp:      requestcontext.Now(ctx),
		Subject:        ownerUserID,
		Action:         string(event),
		Reason:         reason,
		AccountID:      accountID,
		OwnerUserID:    ownerUserID,
		SubscriptionID: subscriptionID,
		Email:          email,
		RequestID:      requestcontext.RequestID(ctx),
	})
}
