// Package service drives the session state machine. Identity provider
// events arrive as typed values and every grant or denial flows through the
// recovery agent, which is what catches interrupted signups at the moment
// the user comes back.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"brokerhub/internal/platform/telemetry"
	recovery "brokerhub/internal/recovery/service"
	"brokerhub/internal/session/metrics"
	"brokerhub/internal/session/models"
	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/platform/audit"
	"brokerhub/pkg/platform/sentinel"
	"brokerhub/pkg/requestcontext"
)

type SessionStore interface {
	Get(ctx context.Context, principalID id.PrincipalID) (*models.Session, error)
	Put(ctx context.Context, sess *models.Session) error
	Delete(ctx context.Context, principalID id.PrincipalID) error
}

// Recoverer repairs interrupted signups before a session is granted.
type Recoverer interface {
	Recover(ctx context.Context, principalID id.PrincipalID, email string) (*recovery.Outcome, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service is the session state machine.
type Service struct {
	sessions       SessionStore
	recoverer      Recoverer
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

func New(sessions SessionStore, recoverer Recoverer, opts ...Option) *Service {
	s := &Service{
		sessions:  sessions,
		recoverer: recoverer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleSessionEvent applies one identity provider event to the machine and
// returns the resulting session state. For denied establishments the state
// is returned together with the coded error explaining the denial, so the
// caller can both reject the session and show the right message.
func (s *Service) HandleSessionEvent(ctx context.Context, event models.Event) (*models.Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "session", "handle_event")
	defer span.End()

	sess, err := s.handle(ctx, event)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return sess, err
}

func (s *Service) handle(ctx context.Context, event models.Event) (*models.Session, error) {
	switch ev := event.(type) {
	case models.PrincipalEstablished:
		return s.handleEstablished(ctx, ev)
	case models.PrincipalSignedOut:
		return s.handleSignedOut(ctx, ev)
	}
	return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown session event")
}

func (s *Service) handleEstablished(ctx context.Context, ev models.PrincipalEstablished) (*models.Session, error) {
	emailAddr := strings.ToLower(strings.TrimSpace(ev.Email))
	if ev.PrincipalID.IsNil() || emailAddr == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "principal id and email are required")
	}
	now := requestcontext.Now(ctx)

	sess, err := s.loadOrNew(ctx, ev.PrincipalID, emailAddr, now)
	if err != nil {
		return nil, err
	}
	if err := sess.Transition(models.StateEstablishing, now); err != nil {
		return nil, err
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist session state")
	}

	if !ev.EmailVerified {
		return s.deny(ctx, sess, models.DenialEmailNotVerified,
			dErrors.New(dErrors.CodeUnauthorized, "email must be verified before signing in"))
	}

	outcome, err := s.recoverer.Recover(ctx, ev.PrincipalID, emailAddr)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnrecoverableSession) {
			return s.deny(ctx, sess, models.DenialUnrecoverable, err)
		}
		// Transient recovery failure: the session stays establishing and
		// the provider retries on the next event.
		return sess, err
	}

	if err := sess.Transition(models.StateActive, now); err != nil {
		return nil, err
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist session state")
	}

	s.incrementEstablished()
	s.logger.InfoContext(ctx, "session established",
		"principal_id", ev.PrincipalID,
		"recovered", outcome.Recovered,
	)
	s.emit(ctx, audit.EventSessionEstablished, audit.Event{
		Subject:     ev.PrincipalID.String(),
		PrincipalID: ev.PrincipalID.String(),
		Email:       emailAddr,
		Reason:      outcome.Reason,
	})
	return sess, nil
}

func (s *Service) handleSignedOut(ctx context.Context, ev models.PrincipalSignedOut) (*models.Session, error) {
	if ev.PrincipalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "principal id is required")
	}
	if err := s.sessions.Delete(ctx, ev.PrincipalID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to clear session state")
	}
	s.incrementSignOut()
	return &models.Session{
		PrincipalID: ev.PrincipalID,
		State:       models.StateNoSession,
		UpdatedAt:   requestcontext.Now(ctx),
	}, nil
}

func (s *Service) loadOrNew(ctx context.Context, principalID id.PrincipalID, emailAddr string, now time.Time) (*models.Session, error) {
	sess, err := s.sessions.Get(ctx, principalID)
	if err == nil {
		sess.Email = emailAddr
		return sess, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load session state")
	}
	return models.NewSession(principalID, emailAddr, now)
}

func (s *Service) deny(ctx context.Context, sess *models.Session, reason string, cause error) (*models.Session, error) {
	now := requestcontext.Now(ctx)
	if err := sess.Deny(reason, now); err != nil {
		return nil, err
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist denied session state",
			"principal_id", sess.PrincipalID,
			"error", err.Error(),
		)
	}
	s.incrementDenied(reason)
	s.logger.WarnContext(ctx, "session denied",
		"principal_id", sess.PrincipalID,
		"reason", reason,
	)
	s.emit(ctx, audit.EventSessionDenied, audit.Event{
		Subject:     sess.PrincipalID.String(),
		PrincipalID: sess.PrincipalID.String(),
		Email:       sess.Email,
		Reason:      reason,
	})
	return sess, cause
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

func (s *Service) incrementEstablished() {
	if s.metrics != nil {
		s.metrics.IncrementEstablished()
	}
}

func (s *Service) incrementDenied(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementDenied(reason)
	}
}

func (s *Service) incrementSignOut() {
	if s.metrics != nil {
		s.metrics.IncrementSignOut()
	}
}
