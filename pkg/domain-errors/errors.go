// Package domainerrors provides coded errors for translating failures across
// layer boundaries. Stores return sentinel errors (pkg/platform/sentinel);
// services wrap or replace them with a coded error; the HTTP layer maps codes
// to statuses without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers that must branch on failure kind
// without string matching.
type Code string

const (
	// Generic codes.
	CodeValidation         Code = "validation"
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeForbidden          Code = "forbidden"
	CodeUnauthorized       Code = "unauthorized"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal_error"

	// Provisioning lifecycle codes.
	//
	// CodeDependencyMissing: a referenced plan or other operator-managed
	// dependency does not exist; user gets a generic message.
	CodeDependencyMissing Code = "dependency_missing"
	// CodeEntityCreationFailed: a remote write failed mid-saga and
	// compensation has been triggered; reported to the user as transient.
	CodeEntityCreationFailed Code = "entity_creation_failed"
	// CodeGatewayUnavailable: the payment gateway rejected or failed a call;
	// no local state was mutated.
	CodeGatewayUnavailable Code = "gateway_unavailable"
	// CodeOrphanedIdentity: an identity-provider principal exists for a
	// signup whose local entities were compensated away. Requires manual
	// operator cleanup; never silently swallowed.
	CodeOrphanedIdentity Code = "orphaned_identity"
	// CodeUnrecoverableSession: session establishment found no Broker row
	// for the principal's email; the session must be denied.
	CodeUnrecoverableSession Code = "unrecoverable_session"
)

// Error is a coded domain error. Message is safe to log; whether it is safe
// to show users depends on the code (httputil decides).
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeInternal when the error carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
