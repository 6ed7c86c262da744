// Package domain defines the typed identifiers shared across bounded contexts.
//
// Every entity ID is a distinct uuid-backed type so the compiler rejects
// cross-entity assignment (passing a BrokerID where an AccountID is expected
// is a compile error, not a runtime surprise). Parse functions enforce the
// trust-boundary invariant: IDs arriving from the outside must be valid,
// non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "brokerhub/pkg/domain-errors"
)

type (
	// AccountID identifies the billing/organization root.
	AccountID uuid.UUID
	// OwnerUserID identifies the billing-facing identity record of the
	// person who signed up.
	OwnerUserID uuid.UUID
	// BrokerID identifies a seat within an Account.
	BrokerID uuid.UUID
	// SubscriptionID identifies the billing state of an Account.
	SubscriptionID uuid.UUID
	// PrincipalID identifies an authentication principal issued by the
	// external identity provider. It is never minted locally.
	PrincipalID uuid.UUID
)

// PlanID identifies a subscription plan. Plans are seeded reference data keyed
// by a small integer, not a UUID.
type PlanID int64

func (id AccountID) String() string      { return uuid.UUID(id).String() }
func (id OwnerUserID) String() string    { return uuid.UUID(id).String() }
func (id BrokerID) String() string       { return uuid.UUID(id).String() }
func (id SubscriptionID) String() string { return uuid.UUID(id).String() }
func (id PrincipalID) String() string    { return uuid.UUID(id).String() }

// MarshalText renders IDs in canonical UUID form so JSON payloads carry
// strings, not byte arrays. Unmarshal goes through the same validation as
// the Parse functions.

func (id AccountID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id OwnerUserID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id BrokerID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id SubscriptionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id PrincipalID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *OwnerUserID) UnmarshalText(text []byte) error {
	parsed, err := ParseOwnerUserID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *BrokerID) UnmarshalText(text []byte) error {
	parsed, err := ParseBrokerID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *SubscriptionID) UnmarshalText(text []byte) error {
	parsed, err := ParseSubscriptionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PrincipalID) UnmarshalText(text []byte) error {
	parsed, err := ParsePrincipalID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id AccountID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id OwnerUserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id BrokerID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id SubscriptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PrincipalID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseAccountID parses and validates an account ID from external input.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID(u), nil
}

// ParseOwnerUserID parses and validates an owner-user ID from external input.
func ParseOwnerUserID(s string) (OwnerUserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return OwnerUserID{}, err
	}
	return OwnerUserID(u), nil
}

// ParseBrokerID parses and validates a broker ID from external input.
func ParseBrokerID(s string) (BrokerID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return BrokerID{}, err
	}
	return BrokerID(u), nil
}

// ParseSubscriptionID parses and validates a subscription ID from external input.
func ParseSubscriptionID(s string) (SubscriptionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SubscriptionID{}, err
	}
	return SubscriptionID(u), nil
}

// ParsePrincipalID parses and validates an identity-provider principal ID.
func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return PrincipalID{}, err
	}
	return PrincipalID(u), nil
}

// maxIDLength bounds input before uuid.Parse sees it; canonical UUIDs are 36
// characters, URN form 45.
const maxIDLength = 64

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil uuid")
	}
	return u, nil
}
