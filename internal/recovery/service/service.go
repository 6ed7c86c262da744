// Package service implements the recovery agent. It runs at session
// establishment and repairs the one interruption the signup saga can leave
// behind that is still recoverable: a Broker seat without its Owner-User
// billing record. A missing Broker means the signup never reached a
// recoverable point and the session must be denied.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"brokerhub/internal/account/models"
	"brokerhub/internal/platform/telemetry"
	"brokerhub/internal/recovery/metrics"
	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/email"
	"brokerhub/pkg/platform/audit"
	"brokerhub/pkg/platform/sentinel"
	"brokerhub/pkg/requestcontext"
)

type BrokerStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Broker, error)
}

type OwnerUserStore interface {
	Create(ctx context.Context, user *models.OwnerUser) error
	Update(ctx context.Context, user *models.OwnerUser) error
	FindByPrincipal(ctx context.Context, principalID id.PrincipalID) (*models.OwnerUser, error)
	FindByEmail(ctx context.Context, email string) (*models.OwnerUser, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Outcome reports what a recovery run did.
type Outcome struct {
	Recovered bool   `json:"recovered"`
	Reason    string `json:"reason"`
}

// Outcome reason tags.
const (
	ReasonOwnerUserPresent = "owner_user_present"
	ReasonOwnerUserCreated = "owner_user_created"
	ReasonPrincipalLinked  = "principal_linked"
)

// Service is the recovery agent.
type Service struct {
	brokers        BrokerStore
	owners         OwnerUserStore
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

func New(brokers BrokerStore, owners OwnerUserStore, opts ...Option) *Service {
	s := &Service{
		brokers: brokers,
		owners:  owners,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recover repairs a missing Owner-User row for the given principal.
//
// The algorithm is idempotent: a second run for the same principal finds
// the row created by the first and does nothing, which makes it safe to run
// on every session establishment, including concurrent establishments from
// multiple browser tabs.
//
// A missing Broker is unrecoverable; the caller must deny the session.
func (s *Service) Recover(ctx context.Context, principalID id.PrincipalID, emailAddr string) (*Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "recovery", "recover")
	defer span.End()

	outcome, err := s.recover(ctx, principalID, emailAddr)
	if err != nil {
		telemetry.RecordError(span, err)
		s.incrementRun(string(dErrors.CodeOf(err)))
		return nil, err
	}
	s.incrementRun(outcome.Reason)
	return outcome, nil
}

func (s *Service) recover(ctx context.Context, principalID id.PrincipalID, emailAddr string) (*Outcome, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if principalID.IsNil() || emailAddr == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "principal id and email are required")
	}

	// A Broker row is the minimum proof the signup reached its seat
	// creation step. Without one there is nothing to repair.
	broker, err := s.brokers.FindByEmail(ctx, emailAddr)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "recovery found no broker for principal",
			"principal_id", principalID,
			"email", emailAddr,
		)
		return nil, dErrors.New(dErrors.CodeUnrecoverableSession, "no broker record exists for this session, contact support")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to look up broker")
	}

	existing, err := s.owners.FindByPrincipal(ctx, principalID)
	if err == nil && existing != nil {
		return &Outcome{Recovered: false, Reason: ReasonOwnerUserPresent}, nil
	}
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to look up owner user")
	}

	// A completed signup leaves a live Owner-User that predates the
	// principal. Adopt it by linking instead of recreating it.
	if outcome, adopted, err := s.adoptByEmail(ctx, principalID, emailAddr); err != nil {
		return nil, err
	} else if adopted {
		return outcome, nil
	}

	user, err := s.createFromBroker(ctx, principalID, broker)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// A concurrent establishment won the create race; the row
			// exists now and may still need its principal link.
			if outcome, adopted, adoptErr := s.adoptByEmail(ctx, principalID, emailAddr); adoptErr == nil && adopted {
				return outcome, nil
			}
			return &Outcome{Recovered: false, Reason: ReasonOwnerUserPresent}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeEntityCreationFailed, "failed to recreate owner user")
	}

	s.logger.InfoContext(ctx, "recovery recreated owner user",
		"owner_user_id", user.ID,
		"principal_id", principalID,
		"broker_id", broker.ID,
	)
	s.emit(ctx, audit.EventOwnerUserRecovered, audit.Event{
		Subject:     user.ID.String(),
		OwnerUserID: user.ID.String(),
		PrincipalID: principalID.String(),
		Email:       user.Email,
	})
	s.incrementRepaired()
	return &Outcome{Recovered: true, Reason: ReasonOwnerUserCreated}, nil
}

// adoptByEmail links an existing live Owner-User to the principal. The
// second return reports whether a row was found at all; false sends the
// caller down the create path.
func (s *Service) adoptByEmail(ctx context.Context, principalID id.PrincipalID, emailAddr string) (*Outcome, bool, error) {
	existing, err := s.owners.FindByEmail(ctx, emailAddr)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to look up owner user by email")
	}

	if existing.PrincipalID != nil {
		// Linked already, necessarily to a different principal or the
		// by-principal lookup would have found it.
		s.logger.WarnContext(ctx, "owner user already linked to another principal",
			"owner_user_id", existing.ID,
			"principal_id", principalID,
		)
		return &Outcome{Recovered: false, Reason: ReasonOwnerUserPresent}, true, nil
	}

	existing.LinkPrincipal(principalID, requestcontext.Now(ctx))
	if err := s.owners.Update(ctx, existing); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to link principal")
	}

	s.logger.InfoContext(ctx, "recovery linked principal to owner user",
		"owner_user_id", existing.ID,
		"principal_id", principalID,
	)
	s.emit(ctx, audit.EventPrincipalLinked, audit.Event{
		Subject:     existing.ID.String(),
		OwnerUserID: existing.ID.String(),
		PrincipalID: principalID.String(),
		Email:       existing.Email,
	})
	return &Outcome{Recovered: true, Reason: ReasonPrincipalLinked}, true, nil
}

// createFromBroker seeds a fresh Owner-User from the Broker's identity.
// Phone is left blank: the signup phone is gone with the lost row, and a
// blank phone never trips the uniqueness probe. Provenance is tagged
// "recovery" so billing flows can tell the row was rebuilt.
func (s *Service) createFromBroker(ctx context.Context, principalID id.PrincipalID, broker *models.Broker) (*models.OwnerUser, error) {
	name := broker.Name
	if name == "" {
		first, last := email.DeriveNameFromEmail(broker.Email)
		name = first + " " + last
	}

	now := requestcontext.Now(ctx)
	user, err := models.NewOwnerUser(id.OwnerUserID(uuid.New()), name, broker.Email, broker.TaxID, "", models.OwnerUserSourceRecovery, now)
	if err != nil {
		return nil, err
	}
	user.LinkPrincipal(principalID, now)

	if err := s.owners.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
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

func (s *Service) incrementRun(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementRun(outcome)
	}
}

func (s *Service) incrementRepaired() {
	if s.metrics != nil {
		s.metrics.IncrementRepaired()
	}
}
