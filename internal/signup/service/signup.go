package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"brokerhub/internal/account/models"
	"brokerhub/internal/platform/telemetry"
	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/platform/audit"
	"brokerhub/pkg/platform/sentinel"
	"brokerhub/pkg/requestcontext"
)

// Input carries one signup submission.
type Input struct {
	Name          string             `json:"name"`
	Email         string             `json:"email"`
	WhatsAppPhone string             `json:"whatsapp_phone"`
	TaxID         string             `json:"tax_id"`
	AccountKind   models.AccountKind `json:"account_kind"`
	CompanyName   string             `json:"company_name,omitempty"`
	PlanCode      string             `json:"plan_code,omitempty"`
}

// Normalize trims whitespace and lowercases the email.
func (in *Input) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.WhatsAppPhone = strings.TrimSpace(in.WhatsAppPhone)
	in.TaxID = strings.TrimSpace(in.TaxID)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.PlanCode = strings.ToLower(strings.TrimSpace(in.PlanCode))
}

// Validate checks structural requirements before any store is touched.
func (in *Input) Validate() error {
	if in.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if in.TaxID == "" {
		return dErrors.New(dErrors.CodeValidation, "tax id is required")
	}
	if !in.AccountKind.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "account kind must be individual or agency")
	}
	return nil
}

// accountName picks the display name for the account root. Agencies are
// named after the company when one was given.
func (in *Input) accountName() string {
	if in.AccountKind == models.AccountKindAgency && in.CompanyName != "" {
		return in.CompanyName
	}
	return in.Name
}

// defaultPlanCode maps an account kind to its entry-level plan when the
// caller did not pick one.
func defaultPlanCode(kind models.AccountKind) string {
	if kind == models.AccountKindAgency {
		return "agency-starter"
	}
	return "solo"
}

// Result identifies the entity graph a successful signup created.
type Result struct {
	AccountID      id.AccountID      `json:"account_id"`
	OwnerUserID    id.OwnerUserID    `json:"owner_user_id"`
	BrokerID       id.BrokerID       `json:"broker_id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
}

// Signup runs the saga: validate, resolve the plan, then create the
// Account, Owner-User, owner Broker and trial Subscription in strict order.
// Any failure after the first create rolls back through the compensator;
// validation and plan-resolution failures abort with no side effects.
func (s *Service) Signup(ctx context.Context, input Input) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "signup", "signup")
	defer span.End()

	result, err := s.signup(ctx, input)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return result, err
}

func (s *Service) signup(ctx context.Context, input Input) (*Result, error) {
	start := time.Now()
	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}
	s.incrementStarted()
	defer s.observeSaga(start)

	reason, err := s.validator.Check(ctx, input.Email, input.TaxID, input.WhatsAppPhone)
	if err != nil {
		return nil, err
	}
	if reason != ReasonOK {
		s.incrementValidationRejected(string(reason))
		s.logAudit(ctx, audit.EventSignupRejected,
			"email", input.Email,
			"reason", string(reason))
		return nil, dErrors.New(dErrors.CodeValidation, reason.Message())
	}

	plan, err := s.resolvePlan(ctx, input)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var created CreatedEntities

	account, err := models.NewAccount(id.AccountID(uuid.New()), input.accountName(), input.AccountKind, input.TaxID, plan.SeatLimit, now)
	if err != nil {
		return nil, invariantToValidation(err)
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, s.failSaga(ctx, created, "create_account", err)
	}
	created.AccountID = &account.ID

	owner, err := models.NewOwnerUser(id.OwnerUserID(uuid.New()), input.Name, input.Email, input.TaxID, input.WhatsAppPhone, models.OwnerUserSourceSignup, now)
	if err != nil {
		return nil, s.failSaga(ctx, created, "create_owner_user", err)
	}
	if err := s.owners.Create(ctx, owner); err != nil {
		return nil, s.failSaga(ctx, created, "create_owner_user", err)
	}
	created.OwnerUserID = &owner.ID

	broker, err := models.NewBroker(id.BrokerID(uuid.New()), account.ID, input.Name, input.Email, input.TaxID, models.BrokerRoleOwner, now)
	if err != nil {
		return nil, s.failSaga(ctx, created, "create_broker", err)
	}
	if err := s.brokers.Create(ctx, broker); err != nil {
		return nil, s.failSaga(ctx, created, "create_broker", err)
	}
	created.BrokerID = &broker.ID

	// The primary-broker back-reference is a convenience pointer, not a
	// correctness-bearing field; its failure only logs.
	account.SetPrimaryBroker(broker.ID, now)
	if err := s.accounts.Update(ctx, account); err != nil {
		s.logger.WarnContext(ctx, "failed to set primary broker back-reference",
			"account_id", account.ID,
			"broker_id", broker.ID,
			"error", err.Error(),
		)
	}

	responsible := models.BillingResponsibleSelf
	if input.AccountKind == models.AccountKindAgency {
		responsible = models.BillingResponsibleAgencyAdmin
	}
	sub, err := models.NewTrialSubscription(id.SubscriptionID(uuid.New()), account.ID, plan, responsible, s.trialWindow(ctx), now)
	if err != nil {
		return nil, s.failSaga(ctx, created, "create_subscription", err)
	}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, s.failSaga(ctx, created, "create_subscription", err)
	}
	created.SubscriptionID = &sub.ID

	s.incrementSucceeded()
	s.logAudit(ctx, audit.EventSignupCompleted,
		"account_id", account.ID.String(),
		"owner_user_id", owner.ID.String(),
		"broker_id", broker.ID.String(),
		"subscription_id", sub.ID.String(),
		"email", input.Email,
		"plan_code", plan.Code,
	)
	return &Result{
		AccountID:      account.ID,
		OwnerUserID:    owner.ID,
		BrokerID:       broker.ID,
		SubscriptionID: sub.ID,
	}, nil
}

func (s *Service) resolvePlan(ctx context.Context, input Input) (*models.Plan, error) {
	code := input.PlanCode
	if code == "" {
		code = defaultPlanCode(input.AccountKind)
	}
	plan, err := s.plans.FindByCode(ctx, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeDependencyMissing, "plan %q is not available", code)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to resolve plan")
	}
	if !plan.Active {
		return nil, dErrors.Newf(dErrors.CodeDependencyMissing, "plan %q is not available", code)
	}
	if plan.Kind != input.AccountKind {
		return nil, dErrors.Newf(dErrors.CodeValidation, "plan %q is not offered for %s accounts", code, input.AccountKind)
	}
	return plan, nil
}

// failSaga rolls back every entity created so far and classifies the cause.
// An orphaned identity discovered during compensation dominates the original
// failure, because it is the one outcome an operator must act on.
func (s *Service) failSaga(ctx context.Context, created CreatedEntities, step string, cause error) error {
	s.logger.ErrorContext(ctx, "signup step failed, compensating",
		"step", step,
		"error", cause.Error(),
	)
	s.incrementCompensated()
	compErr := s.compensator.Compensate(ctx, created)
	s.logAudit(ctx, audit.EventSignupCompensated, append(created.auditAttrs(), "reason", step)...)

	if compErr != nil && dErrors.HasCode(compErr, dErrors.CodeOrphanedIdentity) {
		return compErr
	}
	if errors.Is(cause, sentinel.ErrAlreadyUsed) {
		return dErrors.New(dErrors.CodeConflict, "another signup with the same details just completed")
	}
	if dErrors.HasCode(cause, dErrors.CodeInvariantViolation) {
		return invariantToValidation(cause)
	}
	return dErrors.Wrap(cause, dErrors.CodeEntityCreationFailed, "signup could not complete, please try again")
}

func (c CreatedEntities) auditAttrs() []any {
	var kv []any
	if c.AccountID != nil {
		kv = append(kv, "account_id", c.AccountID.String())
	}
	if c.OwnerUserID != nil {
		kv = append(kv, "owner_user_id", c.OwnerUserID.String())
	}
	if c.BrokerID != nil {
		kv = append(kv, "broker_id", c.BrokerID.String())
	}
	if c.SubscriptionID != nil {
		kv = append(kv, "subscription_id", c.SubscriptionID.String())
	}
	return kv
}

// invariantToValidation converts constructor invariant violations to
// validation errors for the API response.
func invariantToValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}

func (s *Service) incrementStarted() {
	if s.metrics != nil {
		s.metrics.IncrementStarted()
	}
}

func (s *Service) incrementSucceeded() {
	if s.metrics != nil {
		s.metrics.IncrementSucceeded()
	}
}

func (s *Service) incrementCompensated() {
	if s.metrics != nil {
		s.metrics.IncrementCompensated()
	}
}

func (s *Service) incrementValidationRejected(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementValidationRejected(reason)
	}
}

func (s *Service) observeSaga(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveSaga(start)
	}
}
