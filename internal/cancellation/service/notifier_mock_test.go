package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"brokerhub/internal/account/ledger"
	"brokerhub/internal/gateway"
	"brokerhub/internal/gateway/mocks"
	dErrors "brokerhub/pkg/domain-errors"
)

// Call-level expectations on the notifier. The Mock-based tests above cover
// outcomes; these pin down exactly what crosses the wire.

func (s *CancellationSuite) TestGatewayPayloadCarriesBillingProfile() {
	ctrl := gomock.NewController(s.T())
	notifier := mocks.NewMockNotifier(ctrl)

	owner, err := s.owners.FindByID(s.ctx, s.ownerID)
	s.Require().NoError(err)

	notifier.EXPECT().
		CancelSubscription(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, data gateway.CustomerData, sub gateway.SubscriptionData) error {
			s.Equal(owner.BillingProfile.Name, data.Name)
			s.Equal(owner.BillingProfile.Email, data.Email)
			s.Equal(owner.BillingProfile.TaxID, data.TaxID)
			s.Equal(s.ownerID, data.OwnerUserID)
			s.Equal(s.subID, data.SubscriptionID)
			s.Equal(s.now, data.Timestamp)
			s.Equal(s.subID, sub.ID)
			return nil
		}).
		Times(1)

	svc := New(s.owners, s.subscriptions, s.plans, notifier, s.ledger)
	s.Require().NoError(svc.Cancel(s.ctx, s.input()))
}

func (s *CancellationSuite) TestExternalSubscriptionIDOverridesStoredGatewayID() {
	ctrl := gomock.NewController(s.T())
	notifier := mocks.NewMockNotifier(ctrl)

	notifier.EXPECT().
		CancelSubscription(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, _ gateway.CustomerData, sub gateway.SubscriptionData) error {
			s.Equal("gw_override", sub.GatewayID)
			return nil
		}).
		Times(1)

	svc := New(s.owners, s.subscriptions, s.plans, notifier, s.ledger)
	input := s.input()
	input.ExternalSubscriptionID = "gw_override"
	s.Require().NoError(svc.Cancel(s.ctx, input))
}

func (s *CancellationSuite) TestGatewayRefusalStopsTheSagaCold() {
	ctrl := gomock.NewController(s.T())
	notifier := mocks.NewMockNotifier(ctrl)

	notifier.EXPECT().
		CancelSubscription(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(dErrors.New(dErrors.CodeGatewayUnavailable, "subscription_not_found")).
		Times(1)

	tombstones := &countingTombstoner{inner: s.ledger}
	svc := New(s.owners, s.subscriptions, s.plans, notifier, tombstones)

	err := svc.Cancel(s.ctx, s.input())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeGatewayUnavailable))
	s.Zero(tombstones.calls)
}

type countingTombstoner struct {
	inner Tombstoner
	calls int
}

func (c *countingTombstoner) SoftDelete(ctx context.Context, entityType ledger.EntityType, entityID uuid.UUID) error {
	c.calls++
	return c.inner.SoftDelete(ctx, entityType, entityID)
}
