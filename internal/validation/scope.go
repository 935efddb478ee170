package validation

import (
	"regexp"
	"strings"
)

// Scope name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
//
// Valid: openid, profile, offline_access, invoices:read
// Invalid: ;hack, BAD, bad space, :leader, trailer:, "", 65+ chars.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// maxScopes bounds a single request's scope list.
const maxScopes = 32

// ValidScopeName returns true if name matches the allowed pattern.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ValidScope checks a space separated scope parameter. Empty is valid.
func ValidScope(scope string) bool {
	names := strings.Fields(scope)
	if len(names) > maxScopes {
		return false
	}
	for _, n := range names {
		if !ValidScopeName(n) {
			return false
		}
	}
	return true
}
