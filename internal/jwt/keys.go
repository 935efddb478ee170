package jwt

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

// Algorithm es el único alg que firmamos y aceptamos.
const Algorithm = "EdDSA"

// SigningKey es un par Ed25519 con su KID.
type SigningKey struct {
	KID        string
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	CreatedAt  time.Time
}

// GenerateSigningKey genera un par nuevo con KID = thumbprint RFC 7638.
func GenerateSigningKey() (*SigningKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewSigningKey(priv)
}

// NewSigningKey arma un SigningKey a partir de la privada.
func NewSigningKey(priv ed25519.PrivateKey) (*SigningKey, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errors.New("jwt: invalid ed25519 private key size")
	}
	pub, _ := priv.Public().(ed25519.PublicKey)
	kid, err := DeriveKeyID(pub)
	if err != nil {
		return nil, err
	}
	return &SigningKey{KID: kid, PrivateKey: priv, PublicKey: pub, CreatedAt: time.Now().UTC()}, nil
}

// ParseSeed decodifica un seed Ed25519 (32 bytes) o una privada completa
// (64 bytes) en base64 std o base64url.
func ParseSeed(s string) (*SigningKey, error) {
	s = strings.TrimSpace(s)
	var raw []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err = enc.DecodeString(s); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("jwt: signing key is not base64: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return NewSigningKey(ed25519.NewKeyFromSeed(raw))
	case ed25519.PrivateKeySize:
		return NewSigningKey(ed25519.PrivateKey(raw))
	default:
		return nil, fmt.Errorf("jwt: signing key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// EncodeSeed es el inverso de ParseSeed (lo usa `authvital keys generate`).
func (k *SigningKey) EncodeSeed() string {
	return base64.StdEncoding.EncodeToString(k.PrivateKey.Seed())
}

// DeriveKeyID calcula el KID como base64url(SHA-256) del JWK canónico (RFC 7638).
func DeriveKeyID(pub ed25519.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: pub}
	tp, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("jwt: key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(tp), nil
}

// JWK retorna la parte pública como JWK.
func (k *SigningKey) JWK() jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       k.PublicKey,
		KeyID:     k.KID,
		Algorithm: Algorithm,
		Use:       "sig",
	}
}
