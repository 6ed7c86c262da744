package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"brokerhub/internal/account/ledger"
	"brokerhub/internal/account/models"
	"brokerhub/internal/account/store"
	"brokerhub/internal/account/store/account"
	"brokerhub/internal/account/store/broker"
	"brokerhub/internal/account/store/owneruser"
	"brokerhub/internal/account/store/plan"
	"brokerhub/internal/account/store/subscription"
	"brokerhub/internal/gateway"
	"brokerhub/internal/platform/config"
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

func (c *captureAudit) byAction(action audit.AuditEvent) []audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []audit.Event
	for _, e := range c.events {
		if e.Action == string(action) {
			out = append(out, e)
		}
	}
	return out
}

type CancellationSuite struct {
	suite.Suite
	accounts      *account.InMemory
	owners        *owneruser.InMemory
	brokers       *broker.InMemory
	subscriptions *subscription.InMemory
	plans         *plan.InMemory
	ledger        *ledger.Ledger
	notifier      *gateway.Mock
	published     *captureAudit
	service       *Service
	now           time.Time
	ctx           context.Context

	ownerID id.OwnerUserID
	subID   id.SubscriptionID
	accID   id.AccountID
}

func (s *CancellationSuite) SetupTest() {
	s.accounts = account.NewInMemory()
	s.owners = owneruser.NewInMemory()
	s.brokers = broker.NewInMemory()
	s.subscriptions = subscription.NewInMemory()
	s.plans = plan.NewInMemory()
	s.Require().NoError(store.SeedPlans(context.Background(), s.plans))
	s.ledger = ledger.New(s.accounts, s.owners, s.brokers, s.subscriptions)
	s.notifier = &gateway.Mock{}
	s.published = &captureAudit{}
	s.service = New(s.owners, s.subscriptions, s.plans, s.notifier, s.ledger,
		WithAuditPublisher(s.published))
	s.now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.seedGraph()
}

func TestCancellationSuite(t *testing.T) {
	suite.Run(t, new(CancellationSuite))
}

func (s *CancellationSuite) seedGraph() {
	acc, err := models.NewAccount(id.AccountID(uuid.New()), "Ana Lima", models.AccountKindIndividual, "111", 1, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.accounts.Create(s.ctx, acc))
	s.accID = acc.ID

	owner, err := models.NewOwnerUser(id.OwnerUserID(uuid.New()), "Ana Lima", "ana@example.com", "111", "+550000", models.OwnerUserSourceSignup, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.owners.Create(s.ctx, owner))
	s.ownerID = owner.ID

	soloPlan, err := s.plans.FindByCode(s.ctx, "solo")
	s.Require().NoError(err)
	sub, err := models.NewTrialSubscription(id.SubscriptionID(uuid.New()), acc.ID, soloPlan, models.BillingResponsibleSelf, s.now.Add(7*24*time.Hour), s.now)
	s.Require().NoError(err)
	sub.SetGatewayID("gw_123", s.now)
	s.Require().NoError(s.subscriptions.Create(s.ctx, sub))
	s.subID = sub.ID
}

func (s *CancellationSuite) input() Input {
	return Input{
		AccountID:      s.accID,
		SubscriptionID: s.subID,
		OwnerUserID:    s.ownerID,
		Reason:         "too expensive",
	}
}

func (s *CancellationSuite) TestCancelTombstonesAfterGatewaySuccess() {
	s.Require().NoError(s.service.Cancel(s.ctx, s.input()))

	cancels := s.notifier.Cancels()
	s.Require().Len(cancels, 1)
	s.Equal(s.subID, cancels[0].ID)
	s.Equal("gw_123", cancels[0].GatewayID)
	s.Equal("trial", cancels[0].CurrentStatus)
	s.Equal("Solo", cancels[0].PlanName)
	s.Equal("too expensive", cancels[0].CancelReason)

	sub, err := s.subscriptions.FindByID(s.ctx, s.subID)
	s.Require().NoError(err)
	s.Equal(models.SubscriptionStatusCancelled, sub.Status)
	s.Equal("too expensive", sub.CancelReason)
	s.Require().NotNil(sub.CancelledAt)
	s.True(sub.IsDeleted())

	owner, err := s.owners.FindByID(s.ctx, s.ownerID)
	s.Require().NoError(err)
	s.True(owner.IsDeleted())

	s.Len(s.published.byAction(audit.EventSubscriptionCancelled), 1)
}

func (s *CancellationSuite) TestGatewayFailureLeavesLocalStateUntouched() {
	s.notifier.FailWith = gateway.ErrGatewayDown

	err := s.service.Cancel(s.ctx, s.input())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeGatewayUnavailable))

	sub, err := s.subscriptions.FindByID(s.ctx, s.subID)
	s.Require().NoError(err)
	s.Equal(models.SubscriptionStatusTrial, sub.Status)
	s.False(sub.IsDeleted())

	owner, err := s.owners.FindByID(s.ctx, s.ownerID)
	s.Require().NoError(err)
	s.False(owner.IsDeleted())
}

// The same guarantee through a real HTTP client against a 500 endpoint.
func (s *CancellationSuite) TestHTTP500LeavesLocalStateUntouched() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := gateway.NewHTTPClient(config.GatewayConfig{URL: srv.URL, Secret: "shh", Timeout: time.Second})
	svc := New(s.owners, s.subscriptions, s.plans, client, s.ledger)

	err := svc.Cancel(s.ctx, s.input())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeGatewayUnavailable))

	sub, err := s.subscriptions.FindByID(s.ctx, s.subID)
	s.Require().NoError(err)
	s.False(sub.IsDeleted())
	owner, err := s.owners.FindByID(s.ctx, s.ownerID)
	s.Require().NoError(err)
	s.False(owner.IsDeleted())
}

func (s *CancellationSuite) TestCompletedCancellationIsIdempotent() {
	s.Require().NoError(s.service.Cancel(s.ctx, s.input()))
	s.Require().NoError(s.service.Cancel(s.ctx, s.input()))

	// The second run found everything done and did not call the gateway again.
	s.Len(s.notifier.Cancels(), 1)
}

func (s *CancellationSuite) TestRetryFinishesLaggingTombstones() {
	// Simulate a previous run that cancelled and told the gateway but lost
	// the owner-user tombstone write.
	sub, err := s.subscriptions.FindByID(s.ctx, s.subID)
	s.Require().NoError(err)
	sub.ApplyCancellation("too expensive", s.now)
	s.Require().NoError(s.subscriptions.Update(s.ctx, sub))
	s.Require().NoError(s.ledger.SoftDelete(s.ctx, ledger.EntitySubscription, uuid.UUID(s.subID)))

	s.Require().NoError(s.service.Cancel(s.ctx, s.input()))

	// The gateway was told again (idempotent on its side) and the lagging
	// tombstone was written.
	s.Len(s.notifier.Cancels(), 1)
	owner, err := s.owners.FindByID(s.ctx, s.ownerID)
	s.Require().NoError(err)
	s.True(owner.IsDeleted())
}

type failingTombstoner struct{}

func (failingTombstoner) SoftDelete(context.Context, ledger.EntityType, uuid.UUID) error {
	return dErrors.New(dErrors.CodeUnavailable, "connection reset")
}

func (s *CancellationSuite) TestTombstoneFailureAfterGatewaySuccessIsNotFatal() {
	svc := New(s.owners, s.subscriptions, s.plans, s.notifier, failingTombstoner{},
		WithAuditPublisher(s.published))

	s.Require().NoError(svc.Cancel(s.ctx, s.input()))

	// The gateway was told and the status change stuck, so the caller sees
	// success; the tombstones are reported as lagging for a retry.
	s.Len(s.notifier.Cancels(), 1)
	sub, err := s.subscriptions.FindByID(s.ctx, s.subID)
	s.Require().NoError(err)
	s.Equal(models.SubscriptionStatusCancelled, sub.Status)
	s.False(sub.IsDeleted())

	s.Len(s.published.byAction(audit.EventLocalStateLagging), 2)
}

func (s *CancellationSuite) TestValidation() {
	s.Run("unknown subscription", func() {
		input := s.input()
		input.SubscriptionID = id.SubscriptionID(uuid.New())
		err := s.service.Cancel(s.ctx, input)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown owner user", func() {
		input := s.input()
		input.OwnerUserID = id.OwnerUserID(uuid.New())
		err := s.service.Cancel(s.ctx, input)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("account mismatch", func() {
		input := s.input()
		input.AccountID = id.AccountID(uuid.New())
		err := s.service.Cancel(s.ctx, input)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing ids", func() {
		err := s.service.Cancel(s.ctx, Input{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Empty(s.notifier.Cancels())
}
