package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	dErrors "brokerhub/pkg/domain-errors"
)

// Reason is the typed outcome of pre-flight validation.
type Reason string

const (
	ReasonOK         Reason = "ok"
	ReasonEmailTaken Reason = "email_taken"
	ReasonTaxIDTaken Reason = "tax_id_taken"
	ReasonPhoneTaken Reason = "phone_taken"
)

// Message returns the user-facing text for a rejection reason.
func (r Reason) Message() string {
	switch r {
	case ReasonEmailTaken:
		return "email is already registered"
	case ReasonTaxIDTaken:
		return "tax id is already registered"
	case ReasonPhoneTaken:
		return "phone is already registered"
	}
	return ""
}

// Validator runs the pre-flight uniqueness checks before any entity is
// created. Email and tax id are checked against Brokers (the system-wide
// seat collection), phone against Owner-Users. These checks narrow the
// duplicate-signup race window; the store's unique constraints remain the
// backstop.
type Validator struct {
	brokers BrokerStore
	owners  OwnerUserStore
}

func NewValidator(brokers BrokerStore, owners OwnerUserStore) *Validator {
	return &Validator{brokers: brokers, owners: owners}
}

// Check runs the three existence probes concurrently and reports the first
// violated constraint in a fixed precedence: email, then tax id, then phone.
// A lookup failure is returned as a transient error, never as "taken"; a
// flaky store must not tell the user they are already registered.
func (v *Validator) Check(ctx context.Context, email, taxID, phone string) (Reason, error) {
	var emailTaken, taxIDTaken, phoneTaken bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		taken, err := v.brokers.ExistsByEmail(gctx, email)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "email availability check failed")
		}
		emailTaken = taken
		return nil
	})
	g.Go(func() error {
		taken, err := v.brokers.ExistsByTaxID(gctx, taxID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "tax id availability check failed")
		}
		taxIDTaken = taken
		return nil
	})
	g.Go(func() error {
		if phone == "" {
			return nil
		}
		taken, err := v.owners.ExistsByPhone(gctx, phone)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "phone availability check failed")
		}
		phoneTaken = taken
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	switch {
	case emailTaken:
		return ReasonEmailTaken, nil
	case taxIDTaken:
		return ReasonTaxIDTaken, nil
	case phoneTaken:
		return ReasonPhoneTaken, nil
	}
	return ReasonOK, nil
}
