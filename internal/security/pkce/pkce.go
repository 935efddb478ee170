// Package pkce verifies Proof Key for Code Exchange (RFC 7636).
//
// Only S256 is supported. "plain" and any unknown method always fail; there is
// no option to turn that off.
package pkce

import (
	tokens "github.com/dropDatabas3/authvital/internal/security/token"
)

// MethodS256 is the only accepted code_challenge_method.
const MethodS256 = "S256"

// Challenge returns base64url(sha256(verifier)) without padding.
func Challenge(verifier string) string {
	return tokens.SHA256Base64URL(verifier)
}

// Verify reports whether verifier matches challenge under method.
func Verify(verifier, challenge, method string) bool {
	if method != MethodS256 {
		return false
	}
	if verifier == "" || challenge == "" {
		return false
	}
	return tokens.Equal(Challenge(verifier), challenge)
}

// SupportedMethod reports whether method may be used at /authorize.
func SupportedMethod(method string) bool { return method == MethodS256 }
