package broker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
)

type BrokerStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *BrokerStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestBrokerStoreSuite(t *testing.T) {
	suite.Run(t, new(BrokerStoreSuite))
}

func (s *BrokerStoreSuite) newBroker(accountID id.AccountID, email, taxID string, role models.BrokerRole) *models.Broker {
	b, err := models.NewBroker(id.BrokerID(uuid.New()), accountID, "Jane Doe", email, taxID, role, time.Now())
	s.Require().NoError(err)
	return b
}

func (s *BrokerStoreSuite) TestCreationAndLookups() {
	accountID := id.AccountID(uuid.New())

	s.Run("creates and finds by ID", func() {
		broker := s.newBroker(accountID, "jane@example.com", "111", models.BrokerRoleOwner)
		s.Require().NoError(s.store.Create(s.ctx, broker))

		found, err := s.store.FindByID(s.ctx, broker.ID)
		s.Require().NoError(err)
		s.Equal(broker.Email, found.Email)
	})

	s.Run("finds live broker by email case-insensitively", func() {
		broker := s.newBroker(accountID, "case@example.com", "112", models.BrokerRoleAgent)
		s.Require().NoError(s.store.Create(s.ctx, broker))

		found, err := s.store.FindByEmail(s.ctx, "CASE@EXAMPLE.COM")
		s.Require().NoError(err)
		s.Equal(broker.ID, found.ID)
	})

	s.Run("FindByEmail skips tombstoned rows", func() {
		broker := s.newBroker(accountID, "dead@example.com", "113", models.BrokerRoleAgent)
		s.Require().NoError(s.store.Create(s.ctx, broker))

		now := time.Now()
		s.Require().NoError(s.store.SetDeletedAt(s.ctx, broker.ID, &now, now))

		_, err := s.store.FindByEmail(s.ctx, "dead@example.com")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *BrokerStoreSuite) TestUniqueness() {
	accountID := id.AccountID(uuid.New())

	s.Run("rejects duplicate live email", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newBroker(accountID, "dup@example.com", "201", models.BrokerRoleOwner)))

		err := s.store.Create(s.ctx, s.newBroker(accountID, "dup@example.com", "202", models.BrokerRoleAgent))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects duplicate live tax id", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newBroker(accountID, "t1@example.com", "300", models.BrokerRoleOwner)))

		err := s.store.Create(s.ctx, s.newBroker(accountID, "t2@example.com", "300", models.BrokerRoleAgent))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("tombstoned row frees its email", func() {
		broker := s.newBroker(accountID, "free@example.com", "400", models.BrokerRoleOwner)
		s.Require().NoError(s.store.Create(s.ctx, broker))

		now := time.Now()
		s.Require().NoError(s.store.SetDeletedAt(s.ctx, broker.ID, &now, now))

		s.NoError(s.store.Create(s.ctx, s.newBroker(accountID, "free@example.com", "401", models.BrokerRoleOwner)))
	})
}

func (s *BrokerStoreSuite) TestExistenceChecks() {
	accountID := id.AccountID(uuid.New())
	s.Require().NoError(s.store.Create(s.ctx, s.newBroker(accountID, "exists@example.com", "500", models.BrokerRoleOwner)))

	s.Run("ExistsByEmail", func() {
		exists, err := s.store.ExistsByEmail(s.ctx, "EXISTS@example.com")
		s.Require().NoError(err)
		s.True(exists)

		exists, err = s.store.ExistsByEmail(s.ctx, "nope@example.com")
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("ExistsByTaxID", func() {
		exists, err := s.store.ExistsByTaxID(s.ctx, "500")
		s.Require().NoError(err)
		s.True(exists)

		exists, err = s.store.ExistsByTaxID(s.ctx, "999")
		s.Require().NoError(err)
		s.False(exists)
	})
}

func (s *BrokerStoreSuite) TestCountLiveOwners() {
	accountID := id.AccountID(uuid.New())
	otherAccount := id.AccountID(uuid.New())

	owner := s.newBroker(accountID, "owner@example.com", "601", models.BrokerRoleOwner)
	s.Require().NoError(s.store.Create(s.ctx, owner))
	s.Require().NoError(s.store.Create(s.ctx, s.newBroker(accountID, "agent@example.com", "602", models.BrokerRoleAgent)))
	s.Require().NoError(s.store.Create(s.ctx, s.newBroker(otherAccount, "other@example.com", "603", models.BrokerRoleOwner)))

	count, err := s.store.CountLiveOwners(s.ctx, accountID)
	s.Require().NoError(err)
	s.Equal(1, count)

	now := time.Now()
	s.Require().NoError(s.store.SetDeletedAt(s.ctx, owner.ID, &now, now))

	count, err = s.store.CountLiveOwners(s.ctx, accountID)
	s.Require().NoError(err)
	s.Equal(0, count)
}
