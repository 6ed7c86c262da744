package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"brokerhub/internal/account/models"
	"brokerhub/internal/account/store"
	"brokerhub/internal/account/store/account"
	"brokerhub/internal/account/store/broker"
	"brokerhub/internal/account/store/owneruser"
	"brokerhub/internal/account/store/plan"
	"brokerhub/internal/account/store/subscription"
	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/platform/audit"
	"brokerhub/pkg/platform/sentinel"
	"brokerhub/pkg/requestcontext"
)

// Recording wrappers remember every row they created so tests can assert
// exactly what the saga wrote and what compensation removed.

type recordingAccounts struct {
	*account.InMemory
	created []id.AccountID
}

func (r *recordingAccounts) Create(ctx context.Context, a *models.Account) error {
	if err := r.InMemory.Create(ctx, a); err != nil {
		return err
	}
	r.created = append(r.created, a.ID)
	return nil
}

type recordingOwners struct {
	*owneruser.InMemory
	created []id.OwnerUserID
}

func (r *recordingOwners) Create(ctx context.Context, u *models.OwnerUser) error {
	if err := r.InMemory.Create(ctx, u); err != nil {
		return err
	}
	r.created = append(r.created, u.ID)
	return nil
}

type recordingBrokers struct {
	*broker.InMemory
	created []id.BrokerID
}

func (r *recordingBrokers) Create(ctx context.Context, b *models.Broker) error {
	if err := r.InMemory.Create(ctx, b); err != nil {
		return err
	}
	r.created = append(r.created, b.ID)
	return nil
}

type recordingSubscriptions struct {
	*subscription.InMemory
	created []id.SubscriptionID
}

func (r *recordingSubscriptions) Create(ctx context.Context, sub *models.Subscription) error {
	if err := r.InMemory.Create(ctx, sub); err != nil {
		return err
	}
	r.created = append(r.created, sub.ID)
	return nil
}

type SignupSagaSuite struct {
	suite.Suite
	accounts      *recordingAccounts
	owners        *recordingOwners
	brokers       *recordingBrokers
	subscriptions *recordingSubscriptions
	plans         *plan.InMemory
	published     *captureAudit
	now           time.Time
	ctx           context.Context
}

func (s *SignupSagaSuite) SetupTest() {
	s.accounts = &recordingAccounts{InMemory: account.NewInMemory()}
	s.owners = &recordingOwners{InMemory: owneruser.NewInMemory()}
	s.brokers = &recordingBrokers{InMemory: broker.NewInMemory()}
	s.subscriptions = &recordingSubscriptions{InMemory: subscription.NewInMemory()}
	s.plans = plan.NewInMemory()
	s.published = &captureAudit{}
	s.now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.Require().NoError(store.SeedPlans(context.Background(), s.plans))
}

func TestSignupSagaSuite(t *testing.T) {
	suite.Run(t, new(SignupSagaSuite))
}

func (s *SignupSagaSuite) newService(opts ...Option) *Service {
	opts = append([]Option{WithAuditPublisher(s.published)}, opts...)
	return New(s.accounts, s.owners, s.brokers, s.subscriptions, s.plans, opts...)
}

func (s *SignupSagaSuite) individualInput() Input {
	return Input{
		Name:          "Ana Lima",
		Email:         "a@x.com",
		WhatsAppPhone: "+550000",
		TaxID:         "123",
		AccountKind:   models.AccountKindIndividual,
		PlanCode:      "solo",
	}
}

func (s *SignupSagaSuite) assertNothingRemains() {
	for _, accountID := range s.accounts.created {
		_, err := s.accounts.FindByID(s.ctx, accountID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	}
	for _, ownerID := range s.owners.created {
		_, err := s.owners.FindByID(s.ctx, ownerID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	}
	for _, brokerID := range s.brokers.created {
		_, err := s.brokers.FindByID(s.ctx, brokerID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	}
	for _, subID := range s.subscriptions.created {
		_, err := s.subscriptions.FindByID(s.ctx, subID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	}
}

func (s *SignupSagaSuite) TestIndividualSignupCreatesFullGraph() {
	result, err := s.newService().Signup(s.ctx, s.individualInput())
	s.Require().NoError(err)

	s.Len(s.accounts.created, 1)
	s.Len(s.owners.created, 1)
	s.Len(s.brokers.created, 1)
	s.Len(s.subscriptions.created, 1)

	acc, err := s.accounts.FindByID(s.ctx, result.AccountID)
	s.Require().NoError(err)
	s.Equal(models.AccountKindIndividual, acc.Kind)
	s.Equal("Ana Lima", acc.Name)
	s.Equal(1, acc.SeatLimit)
	s.Require().NotNil(acc.PrimaryBrokerID)
	s.Equal(result.BrokerID, *acc.PrimaryBrokerID)

	owner, err := s.owners.FindByID(s.ctx, result.OwnerUserID)
	s.Require().NoError(err)
	s.Equal(models.OwnerUserSourceSignup, owner.Source)
	s.Nil(owner.PrincipalID)
	s.Equal("a@x.com", owner.BillingProfile.Email)
	s.Equal("+550000", owner.BillingProfile.Phone)

	b, err := s.brokers.FindByID(s.ctx, result.BrokerID)
	s.Require().NoError(err)
	s.Equal(models.BrokerRoleOwner, b.Role)
	s.Equal(result.AccountID, b.AccountID)

	sub, err := s.subscriptions.FindByID(s.ctx, result.SubscriptionID)
	s.Require().NoError(err)
	s.Equal(models.SubscriptionStatusTrial, sub.Status)
	s.Equal(models.BillingResponsibleSelf, sub.BillingResponsible)
	s.WithinDuration(s.now.Add(7*24*time.Hour), sub.TrialEndsAt, time.Second)
	s.True(sub.CurrentPrice.Equal(decimal.NewFromInt(49)))
	s.Nil(sub.GatewayID)

	completed := s.published.byAction(audit.EventSignupCompleted)
	s.Require().Len(completed, 1)
	s.Equal(result.AccountID.String(), completed[0].AccountID)
}

func (s *SignupSagaSuite) TestAgencySignupUsesCompanyNameAndAdminBilling() {
	input := Input{
		Name:        "Bruno Costa",
		Email:       "bruno@agency.com",
		TaxID:       "456",
		AccountKind: models.AccountKindAgency,
		CompanyName: "Costa Imoveis",
	}

	result, err := s.newService().Signup(s.ctx, input)
	s.Require().NoError(err)

	acc, err := s.accounts.FindByID(s.ctx, result.AccountID)
	s.Require().NoError(err)
	s.Equal("Costa Imoveis", acc.Name)
	s.Equal(models.AccountKindAgency, acc.Kind)
	s.Equal(5, acc.SeatLimit) // agency-starter default

	sub, err := s.subscriptions.FindByID(s.ctx, result.SubscriptionID)
	s.Require().NoError(err)
	s.Equal(models.BillingResponsibleAgencyAdmin, sub.BillingResponsible)
}

func (s *SignupSagaSuite) TestTakenTaxIDRejectsBeforeAnyWrite() {
	existing, err := models.NewBroker(id.BrokerID(uuid.New()), id.AccountID(uuid.New()), "Carla", "carla@x.com", "123", models.BrokerRoleOwner, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.brokers.InMemory.Create(s.ctx, existing))

	input := s.individualInput()
	input.Email = "fresh@x.com"

	_, err = s.newService().Signup(s.ctx, input)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Empty(s.accounts.created)
	s.Empty(s.owners.created)
	s.Empty(s.brokers.created)
	s.Empty(s.subscriptions.created)
	s.Len(s.published.byAction(audit.EventSignupRejected), 1)
}

func (s *SignupSagaSuite) TestPlanResolution() {
	s.Run("unknown plan aborts with no side effects", func() {
		input := s.individualInput()
		input.PlanCode = "enterprise"

		_, err := s.newService().Signup(s.ctx, input)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDependencyMissing))
		s.Empty(s.accounts.created)
	})

	s.Run("inactive plan aborts", func() {
		s.Require().NoError(s.plans.Upsert(s.ctx, &models.Plan{
			ID: 9, Code: "legacy", Name: "Legacy", Kind: models.AccountKindIndividual,
			MonthlyPrice: decimal.NewFromInt(10), SeatLimit: 1, Active: false,
		}))
		input := s.individualInput()
		input.PlanCode = "legacy"

		_, err := s.newService().Signup(s.ctx, input)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDependencyMissing))
	})

	s.Run("plan kind must match account kind", func() {
		input := s.individualInput()
		input.PlanCode = "agency-starter"

		_, err := s.newService().Signup(s.ctx, input)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

type accountCreateFails struct{ AccountStore }

func (accountCreateFails) Create(context.Context, *models.Account) error {
	return errors.New("connection reset")
}

type brokerCreateFails struct{ BrokerStore }

func (brokerCreateFails) Create(context.Context, *models.Broker) error {
	return errors.New("connection reset")
}

type subscriptionCreateFails struct{ SubscriptionStore }

func (subscriptionCreateFails) Create(context.Context, *models.Subscription) error {
	return errors.New("connection reset")
}

type accountUpdateFails struct{ AccountStore }

func (accountUpdateFails) Update(context.Context, *models.Account) error {
	return errors.New("connection reset")
}

func (s *SignupSagaSuite) TestAccountCreationFailureLeavesNothing() {
	svc := New(accountCreateFails{AccountStore: s.accounts}, s.owners, s.brokers, s.subscriptions, s.plans,
		WithAuditPublisher(s.published))

	_, err := svc.Signup(s.ctx, s.individualInput())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeEntityCreationFailed))
	s.Empty(s.accounts.created)
	s.Empty(s.owners.created)
}

func (s *SignupSagaSuite) TestBrokerCreationFailureCompensatesAccountAndOwner() {
	svc := New(s.accounts, s.owners, brokerCreateFails{BrokerStore: s.brokers}, s.subscriptions, s.plans,
		WithAuditPublisher(s.published))

	_, err := svc.Signup(s.ctx, s.individualInput())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeEntityCreationFailed))

	s.Len(s.accounts.created, 1)
	s.Len(s.owners.created, 1)
	s.Empty(s.subscriptions.created)
	s.assertNothingRemains()
	s.Len(s.published.byAction(audit.EventSignupCompensated), 1)
}

func (s *SignupSagaSuite) TestSubscriptionCreationFailureCompensatesEverything() {
	svc := New(s.accounts, s.owners, s.brokers, subscriptionCreateFails{SubscriptionStore: s.subscriptions}, s.plans,
		WithAuditPublisher(s.published))

	_, err := svc.Signup(s.ctx, s.individualInput())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeEntityCreationFailed))

	s.Len(s.accounts.created, 1)
	s.Len(s.owners.created, 1)
	s.Len(s.brokers.created, 1)
	s.assertNothingRemains()
}

func (s *SignupSagaSuite) TestPrimaryBrokerPatchFailureDoesNotAbort() {
	svc := New(accountUpdateFails{AccountStore: s.accounts}, s.owners, s.brokers, s.subscriptions, s.plans,
		WithAuditPublisher(s.published))

	result, err := svc.Signup(s.ctx, s.individualInput())
	s.Require().NoError(err)

	acc, err := s.accounts.FindByID(s.ctx, result.AccountID)
	s.Require().NoError(err)
	s.Nil(acc.PrimaryBrokerID)

	sub, err := s.subscriptions.FindByID(s.ctx, result.SubscriptionID)
	s.Require().NoError(err)
	s.Equal(models.SubscriptionStatusTrial, sub.Status)
}

func (s *SignupSagaSuite) TestUniqueConstraintBackstopMapsToConflict() {
	// An owner-user with the same email already exists without a broker
	// seat, so the validator's broker probes pass and the store constraint
	// is the backstop.
	dup, err := models.NewOwnerUser(id.OwnerUserID(uuid.New()), "Racer", "a@x.com", "999", "+551111", models.OwnerUserSourceSignup, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.owners.InMemory.Create(s.ctx, dup))

	_, err = s.newService().Signup(s.ctx, s.individualInput())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.assertNothingRemains()
}

func (s *SignupSagaSuite) TestCustomTrialWindow() {
	result, err := s.newService(WithTrialDays(14)).Signup(s.ctx, s.individualInput())
	s.Require().NoError(err)

	sub, err := s.subscriptions.FindByID(s.ctx, result.SubscriptionID)
	s.Require().NoError(err)
	s.WithinDuration(s.now.Add(14*24*time.Hour), sub.TrialEndsAt, time.Second)
}

func (s *SignupSagaSuite) TestStructuralValidation() {
	svc := s.newService()

	for name, mutate := range map[string]func(*Input){
		"missing name":  func(in *Input) { in.Name = "" },
		"missing email": func(in *Input) { in.Email = "" },
		"bad email":     func(in *Input) { in.Email = "not-an-email" },
		"missing taxid": func(in *Input) { in.TaxID = "" },
		"bad kind":      func(in *Input) { in.AccountKind = "llc" },
	} {
		s.Run(name, func() {
			input := s.individualInput()
			mutate(&input)
			_, err := svc.Signup(s.ctx, input)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
	s.Empty(s.accounts.created)
}
