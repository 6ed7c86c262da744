package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"brokerhub/internal/account/models"
	"brokerhub/internal/account/store/broker"
	"brokerhub/internal/account/store/owneruser"
	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/platform/audit"
	"brokerhub/pkg/requestcontext"
)

type captureAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureAudit) Emit(_ context.Context, e audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

type RecoverySuite struct {
	suite.Suite
	brokers   *broker.InMemory
	owners    *owneruser.InMemory
	published *captureAudit
	service   *Service
	now       time.Time
	ctx       context.Context
}

func (s *RecoverySuite) SetupTest() {
	s.brokers = broker.NewInMemory()
	s.owners = owneruser.NewInMemory()
	s.published = &captureAudit{}
	s.service = New(s.brokers, s.owners, WithAuditPublisher(s.published))
	s.now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestRecoverySuite(t *testing.T) {
	suite.Run(t, new(RecoverySuite))
}

func (s *RecoverySuite) seedBroker(name, emailAddr, taxID string) *models.Broker {
	b, err := models.NewBroker(id.BrokerID(uuid.New()), id.AccountID(uuid.New()), name, emailAddr, taxID, models.BrokerRoleOwner, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.brokers.Create(s.ctx, b))
	return b
}

func (s *RecoverySuite) TestMissingBrokerIsUnrecoverable() {
	principalID := id.PrincipalID(uuid.New())

	_, err := s.service.Recover(s.ctx, principalID, "nobody@example.com")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnrecoverableSession))
}

func (s *RecoverySuite) TestRecreatesMissingOwnerUser() {
	s.seedBroker("Ana Lima", "ana@example.com", "111")
	principalID := id.PrincipalID(uuid.New())

	outcome, err := s.service.Recover(s.ctx, principalID, "ana@example.com")
	s.Require().NoError(err)
	s.True(outcome.Recovered)
	s.Equal(ReasonOwnerUserCreated, outcome.Reason)

	user, err := s.owners.FindByPrincipal(s.ctx, principalID)
	s.Require().NoError(err)
	s.Equal("Ana Lima", user.Name)
	s.Equal("ana@example.com", user.Email)
	s.Equal("111", user.TaxID)
	s.Empty(user.Phone)
	s.Equal(models.OwnerUserSourceRecovery, user.Source)
	s.Require().NotNil(user.PrincipalID)
	s.Equal(principalID, *user.PrincipalID)

	s.Require().Len(s.published.events, 1)
	s.Equal(string(audit.EventOwnerUserRecovered), s.published.events[0].Action)
}

func (s *RecoverySuite) TestSecondRunIsNoOp() {
	s.seedBroker("Ana Lima", "ana@example.com", "111")
	principalID := id.PrincipalID(uuid.New())

	first, err := s.service.Recover(s.ctx, principalID, "ana@example.com")
	s.Require().NoError(err)
	s.True(first.Recovered)

	second, err := s.service.Recover(s.ctx, principalID, "ana@example.com")
	s.Require().NoError(err)
	s.False(second.Recovered)
	s.Equal(ReasonOwnerUserPresent, second.Reason)

	// Only one owner-user row and one audit event exist after both runs.
	user, err := s.owners.FindByPrincipal(s.ctx, principalID)
	s.Require().NoError(err)
	s.Equal(models.OwnerUserSourceRecovery, user.Source)
	s.Len(s.published.events, 1)
}

func (s *RecoverySuite) TestExistingLinkedOwnerUserShortCircuits() {
	s.seedBroker("Ana Lima", "ana@example.com", "111")
	principalID := id.PrincipalID(uuid.New())

	user, err := models.NewOwnerUser(id.OwnerUserID(uuid.New()), "Ana Lima", "ana@example.com", "111", "+550000", models.OwnerUserSourceSignup, s.now)
	s.Require().NoError(err)
	user.LinkPrincipal(principalID, s.now)
	s.Require().NoError(s.owners.Create(s.ctx, user))

	outcome, err := s.service.Recover(s.ctx, principalID, "ana@example.com")
	s.Require().NoError(err)
	s.False(outcome.Recovered)
	s.Equal(ReasonOwnerUserPresent, outcome.Reason)
	s.Empty(s.published.events)
}

func (s *RecoverySuite) TestLinksUnlinkedOwnerUserFromCompletedSignup() {
	s.seedBroker("Ana Lima", "ana@example.com", "111")
	principalID := id.PrincipalID(uuid.New())

	// A completed signup left a live Owner-User that predates the principal.
	user, err := models.NewOwnerUser(id.OwnerUserID(uuid.New()), "Ana Lima", "ana@example.com", "111", "+550000", models.OwnerUserSourceSignup, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.owners.Create(s.ctx, user))

	outcome, err := s.service.Recover(s.ctx, principalID, "ana@example.com")
	s.Require().NoError(err)
	s.True(outcome.Recovered)
	s.Equal(ReasonPrincipalLinked, outcome.Reason)

	linked, err := s.owners.FindByPrincipal(s.ctx, principalID)
	s.Require().NoError(err)
	s.Equal(user.ID, linked.ID)
	s.Equal(models.OwnerUserSourceSignup, linked.Source)
	s.Equal("+550000", linked.Phone)

	s.Require().Len(s.published.events, 1)
	s.Equal(string(audit.EventPrincipalLinked), s.published.events[0].Action)

	// The next establishment finds the link and does nothing.
	second, err := s.service.Recover(s.ctx, principalID, "ana@example.com")
	s.Require().NoError(err)
	s.False(second.Recovered)
	s.Equal(ReasonOwnerUserPresent, second.Reason)
	s.Len(s.published.events, 1)
}

func (s *RecoverySuite) TestNeverRelinksAnotherPrincipalsOwnerUser() {
	s.seedBroker("Ana Lima", "ana@example.com", "111")
	firstPrincipal := id.PrincipalID(uuid.New())
	secondPrincipal := id.PrincipalID(uuid.New())

	user, err := models.NewOwnerUser(id.OwnerUserID(uuid.New()), "Ana Lima", "ana@example.com", "111", "+550000", models.OwnerUserSourceSignup, s.now)
	s.Require().NoError(err)
	user.LinkPrincipal(firstPrincipal, s.now)
	s.Require().NoError(s.owners.Create(s.ctx, user))

	outcome, err := s.service.Recover(s.ctx, secondPrincipal, "ana@example.com")
	s.Require().NoError(err)
	s.False(outcome.Recovered)
	s.Equal(ReasonOwnerUserPresent, outcome.Reason)

	kept, err := s.owners.FindByPrincipal(s.ctx, firstPrincipal)
	s.Require().NoError(err)
	s.Equal(user.ID, kept.ID)
	_, err = s.owners.FindByPrincipal(s.ctx, secondPrincipal)
	s.Require().Error(err)
}

func (s *RecoverySuite) TestEmailIsNormalized() {
	s.seedBroker("Ana Lima", "ana@example.com", "111")
	principalID := id.PrincipalID(uuid.New())

	outcome, err := s.service.Recover(s.ctx, principalID, "  ANA@Example.com ")
	s.Require().NoError(err)
	s.True(outcome.Recovered)
}

func (s *RecoverySuite) TestNameFallsBackToEmailDerivation() {
	// Legacy rows can carry a blank name; the agent derives one rather
	// than violating the owner-user constructor.
	legacy := &models.Broker{
		ID:        id.BrokerID(uuid.New()),
		AccountID: id.AccountID(uuid.New()),
		Email:     "joao.silva@example.com",
		TaxID:     "222",
		Role:      models.BrokerRoleOwner,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(s.brokers.Create(s.ctx, legacy))
	principalID := id.PrincipalID(uuid.New())

	outcome, err := s.service.Recover(s.ctx, principalID, "joao.silva@example.com")
	s.Require().NoError(err)
	s.True(outcome.Recovered)

	user, err := s.owners.FindByPrincipal(s.ctx, principalID)
	s.Require().NoError(err)
	s.Equal("Joao Silva", user.Name)
}

type failingBrokerLookup struct{ BrokerStore }

func (failingBrokerLookup) FindByEmail(context.Context, string) (*models.Broker, error) {
	return nil, errors.New("connection reset")
}

func (s *RecoverySuite) TestTransientLookupFailureIsNotUnrecoverable() {
	svc := New(failingBrokerLookup{BrokerStore: s.brokers}, s.owners)

	_, err := svc.Recover(s.ctx, id.PrincipalID(uuid.New()), "ana@example.com")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.False(dErrors.HasCode(err, dErrors.CodeUnrecoverableSession))
}

func (s *RecoverySuite) TestInvalidInput() {
	_, err := s.service.Recover(s.ctx, id.PrincipalID{}, "ana@example.com")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.Recover(s.ctx, id.PrincipalID(uuid.New()), "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
