// Package email derives display names from email addresses, used when a
// recovered record has no name on file.
package email

import (
	"strings"
	"unicode"
)

// DeriveNameFromEmail splits the local part of an address on common
// separators and returns a (first, last) pair. Components that cannot be
// derived fall back to "User".
func DeriveNameFromEmail(email string) (string, string) {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		switch r {
		case '.', '_', '-', '+':
			return true
		}
		return false
	})
	if len(parts) == 0 {
		return "User", "User"
	}

	first := title(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = title(parts[len(parts)-1])
	}
	return first, last
}

func title(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
