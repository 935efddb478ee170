// Package secret hashes and checks OAuth client secrets with bcrypt.
package secret

import (
	"golang.org/x/crypto/bcrypt"

	tokens "github.com/dropDatabas3/authvital/internal/security/token"
)

// Hash returns the bcrypt hash of plain.
func Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether plain matches hash. An empty hash never matches.
func Compare(hash, plain string) bool {
	if hash == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Generate creates a new random client secret and its hash.
func Generate() (plain, hash string, err error) {
	plain, err = tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", "", err
	}
	hash, err = Hash(plain)
	if err != nil {
		return "", "", err
	}
	return plain, hash, nil
}
