// Package models defines the session state machine driven by identity
// provider events. The open-ended auth callback of dashboard frontends is
// reframed as explicit states with checked transitions, so every path a
// principal can take through establishment is enumerable and testable.
package models

import (
	"time"

	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
)

// State is the session establishment state for one principal.
type State string

const (
	StateNoSession    State = "no_session"
	StateEstablishing State = "establishing"
	StateActive       State = "active"
	StateDenied       State = "denied"
)

func (s State) IsValid() bool {
	switch s {
	case StateNoSession, StateEstablishing, StateActive, StateDenied:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition is allowed. Any state can
// begin establishing (a new login attempt from any tab) and any state can
// drop to no-session (sign-out). Active and Denied are only reachable from
// Establishing, which forces every grant or denial through the recovery
// check.
func (s State) CanTransitionTo(target State) bool {
	switch target {
	case StateEstablishing, StateNoSession:
		return true
	case StateActive, StateDenied:
		return s == StateEstablishing
	}
	return false
}

// Denial reason tags.
const (
	DenialEmailNotVerified = "email_not_verified"
	DenialUnrecoverable    = "unrecoverable_session"
)

// Session is the per-principal establishment record.
type Session struct {
	PrincipalID id.PrincipalID `json:"principal_id"`
	Email       string         `json:"email"`
	State       State          `json:"state"`
	// DenialReason is set only in the denied state.
	DenialReason  string     `json:"denial_reason,omitempty"`
	EstablishedAt *time.Time `json:"established_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func NewSession(principalID id.PrincipalID, email string, now time.Time) (*Session, error) {
	if principalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session principal id cannot be empty")
	}
	return &Session{
		PrincipalID: principalID,
		Email:       email,
		State:       StateNoSession,
		UpdatedAt:   now,
	}, nil
}

// Transition moves the session to the target state, enforcing the machine.
func (s *Session) Transition(target State, now time.Time) error {
	if !s.State.CanTransitionTo(target) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot transition session from %s to %s", s.State, target)
	}
	s.State = target
	s.UpdatedAt = now
	switch target {
	case StateActive:
		s.DenialReason = ""
		s.EstablishedAt = &now
	case StateEstablishing, StateNoSession:
		s.DenialReason = ""
		s.EstablishedAt = nil
	}
	return nil
}

// Deny moves the session to denied with its reason.
func (s *Session) Deny(reason string, now time.Time) error {
	if err := s.Transition(StateDenied, now); err != nil {
		return err
	}
	s.DenialReason = reason
	return nil
}

func (s *Session) IsActive() bool {
	return s.State == StateActive
}

// Event is an identity provider notification the state machine consumes.
type Event interface {
	isSessionEvent()
}

// PrincipalEstablished fires when the identity provider reports a signed-in
// principal. EmailVerified gates both recovery and session grant.
type PrincipalEstablished struct {
	PrincipalID   id.PrincipalID
	Email         string
	EmailVerified bool
}

// PrincipalSignedOut fires when the principal's session ends.
type PrincipalSignedOut struct {
	PrincipalID id.PrincipalID
}

func (PrincipalEstablished) isSessionEvent() {}
func (PrincipalSignedOut) isSessionEvent()   {}
