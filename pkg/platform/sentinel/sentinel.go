// Package sentinel holds the error values stores report facts with. A store
// says what happened (a row was absent, a unique value was taken); the
// service layer decides what that means and translates to a coded domain
// error. Validation of caller input never uses these, that is
// pkg/domain-errors territory.
package sentinel

import "errors"

var (
	// ErrNotFound: no live row matched the lookup.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the write collided with concurrent state.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyUsed: a system-wide unique value (email, tax id, phone) is
	// already claimed by another row.
	ErrAlreadyUsed = errors.New("already used")
)
