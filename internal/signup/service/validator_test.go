package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"brokerhub/internal/account/models"
	"brokerhub/internal/account/store/broker"
	"brokerhub/internal/account/store/owneruser"
	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
)

type ValidatorSuite struct {
	suite.Suite
	brokers   *broker.InMemory
	owners    *owneruser.InMemory
	validator *Validator
	ctx       context.Context
}

func (s *ValidatorSuite) SetupTest() {
	s.brokers = broker.NewInMemory()
	s.owners = owneruser.NewInMemory()
	s.validator = NewValidator(s.brokers, s.owners)
	s.ctx = context.Background()
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) seedBroker(email, taxID string) {
	b, err := models.NewBroker(id.BrokerID(uuid.New()), id.AccountID(uuid.New()), "Ana Lima", email, taxID, models.BrokerRoleOwner, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.brokers.Create(s.ctx, b))
}

func (s *ValidatorSuite) seedOwnerWithPhone(email, taxID, phone string) {
	u, err := models.NewOwnerUser(id.OwnerUserID(uuid.New()), "Ana Lima", email, taxID, phone, models.OwnerUserSourceSignup, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.owners.Create(s.ctx, u))
}

func (s *ValidatorSuite) TestCheck() {
	s.Run("all clear", func() {
		reason, err := s.validator.Check(s.ctx, "new@example.com", "100", "+5511999990000")
		s.Require().NoError(err)
		s.Equal(ReasonOK, reason)
	})

	s.Run("email taken on a live broker", func() {
		s.seedBroker("taken@example.com", "101")

		reason, err := s.validator.Check(s.ctx, "taken@example.com", "999", "")
		s.Require().NoError(err)
		s.Equal(ReasonEmailTaken, reason)
	})

	s.Run("tax id taken on a live broker", func() {
		s.seedBroker("someone@example.com", "102")

		reason, err := s.validator.Check(s.ctx, "fresh@example.com", "102", "")
		s.Require().NoError(err)
		s.Equal(ReasonTaxIDTaken, reason)
	})

	s.Run("phone taken on a live owner user", func() {
		s.seedOwnerWithPhone("owner@example.com", "103", "+5511888880000")

		reason, err := s.validator.Check(s.ctx, "fresh@example.com", "999", "+5511888880000")
		s.Require().NoError(err)
		s.Equal(ReasonPhoneTaken, reason)
	})

	s.Run("email precedes tax id when both are taken", func() {
		s.seedBroker("both@example.com", "104")

		reason, err := s.validator.Check(s.ctx, "both@example.com", "104", "")
		s.Require().NoError(err)
		s.Equal(ReasonEmailTaken, reason)
	})

	s.Run("blank phone skips the phone probe", func() {
		reason, err := s.validator.Check(s.ctx, "fresh@example.com", "105", "")
		s.Require().NoError(err)
		s.Equal(ReasonOK, reason)
	})
}

func (s *ValidatorSuite) TestCheckIgnoresTombstonedRows() {
	b, err := models.NewBroker(id.BrokerID(uuid.New()), id.AccountID(uuid.New()), "Old Owner", "ghost@example.com", "200", models.BrokerRoleOwner, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.brokers.Create(s.ctx, b))
	deletedAt := time.Now()
	s.Require().NoError(s.brokers.SetDeletedAt(s.ctx, b.ID, &deletedAt, deletedAt))

	reason, err := s.validator.Check(s.ctx, "ghost@example.com", "200", "")
	s.Require().NoError(err)
	s.Equal(ReasonOK, reason)
}

// failingBrokerStore fails every probe to simulate a flaky remote store.
type failingBrokerStore struct {
	BrokerStore
}

func (failingBrokerStore) ExistsByEmail(context.Context, string) (bool, error) {
	return false, errors.New("connection reset")
}

func (failingBrokerStore) ExistsByTaxID(context.Context, string) (bool, error) {
	return false, errors.New("connection reset")
}

func (s *ValidatorSuite) TestTransientLookupFailureIsNotTaken() {
	v := NewValidator(failingBrokerStore{BrokerStore: s.brokers}, s.owners)

	_, err := v.Check(s.ctx, "fresh@example.com", "300", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.False(dErrors.HasCode(err, dErrors.CodeValidation))
}
