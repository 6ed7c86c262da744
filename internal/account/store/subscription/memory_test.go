package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"brokerhub/internal/account/models"
	id "brokerhub/pkg/domain"
	"brokerhub/pkg/platform/sentinel"
)

type SubscriptionStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *SubscriptionStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestSubscriptionStoreSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionStoreSuite))
}

func (s *SubscriptionStoreSuite) newSubscription(accountID id.AccountID) *models.Subscription {
	now := time.Now()
	return &models.Subscription{
		ID:                 id.SubscriptionID(uuid.New()),
		AccountID:          accountID,
		PlanID:             id.PlanID(1),
		Status:             models.SubscriptionStatusTrial,
		BillingResponsible: models.BillingResponsibleSelf,
		TrialEndsAt:        now.Add(7 * 24 * time.Hour),
		CurrentPrice:       decimal.NewFromInt(49),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (s *SubscriptionStoreSuite) TestCreationAndLookups() {
	accountID := id.AccountID(uuid.New())

	s.Run("creates and finds by ID", func() {
		sub := s.newSubscription(accountID)
		s.Require().NoError(s.store.Create(s.ctx, sub))

		found, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.Equal(models.SubscriptionStatusTrial, found.Status)
	})

	s.Run("FindByID returns tombstoned rows", func() {
		sub := s.newSubscription(id.AccountID(uuid.New()))
		s.Require().NoError(s.store.Create(s.ctx, sub))

		now := time.Now()
		s.Require().NoError(s.store.SetDeletedAt(s.ctx, sub.ID, &now, now))

		found, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.True(found.IsDeleted())
	})

	s.Run("FindLiveByAccount skips tombstoned rows", func() {
		account := id.AccountID(uuid.New())
		sub := s.newSubscription(account)
		s.Require().NoError(s.store.Create(s.ctx, sub))

		found, err := s.store.FindLiveByAccount(s.ctx, account)
		s.Require().NoError(err)
		s.Equal(sub.ID, found.ID)

		now := time.Now()
		s.Require().NoError(s.store.SetDeletedAt(s.ctx, sub.ID, &now, now))

		_, err = s.store.FindLiveByAccount(s.ctx, account)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *SubscriptionStoreSuite) TestUpdates() {
	s.Run("persists cancellation fields", func() {
		sub := s.newSubscription(id.AccountID(uuid.New()))
		s.Require().NoError(s.store.Create(s.ctx, sub))

		cancelTime := time.Now()
		sub.ApplyCancellation("too expensive", cancelTime)
		s.Require().NoError(s.store.Update(s.ctx, sub))

		found, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.True(found.IsCancelled())
		s.Equal("too expensive", found.CancelReason)
		s.Require().NotNil(found.CancelledAt)
	})

	s.Run("returns ErrNotFound for unknown subscription", func() {
		s.ErrorIs(s.store.Update(s.ctx, s.newSubscription(id.AccountID(uuid.New()))), sentinel.ErrNotFound)
	})
}

func (s *SubscriptionStoreSuite) TestDelete() {
	sub := s.newSubscription(id.AccountID(uuid.New()))
	s.Require().NoError(s.store.Create(s.ctx, sub))

	s.Require().NoError(s.store.Delete(s.ctx, sub.ID))
	_, err := s.store.FindByID(s.ctx, sub.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
