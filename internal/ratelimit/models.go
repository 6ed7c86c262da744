// Package ratelimit guards the unauthenticated signup surface from abuse.
package ratelimit

import "time"

// Result describes a rate limit decision for one request.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}
