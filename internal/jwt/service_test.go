package jwt

import (
	"context"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClaims struct {
	jwtv5.RegisteredClaims
	Scope     string `json:"scope,omitempty"`
	TokenType string `json:"token_type,omitempty"`
}

const iss = "https://auth.example.com"

func newService(t *testing.T) *LocalKeyService {
	t.Helper()
	k, err := GenerateSigningKey()
	require.NoError(t, err)
	return NewLocalKeyService(NewKeystore(k))
}

func TestSignVerify_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	raw, err := svc.Sign(ctx, testClaims{Scope: "openid email", TokenType: "access"}, SignOptions{
		Subject: "user-1", Audience: "client-1", Issuer: iss, ExpiresIn: time.Minute,
	})
	require.NoError(t, err)

	var got testClaims
	require.NoError(t, svc.Verify(ctx, raw, iss, &got))
	assert.Equal(t, "user-1", got.Subject)
	assert.Equal(t, jwtv5.ClaimStrings{"client-1"}, got.Audience)
	assert.Equal(t, "openid email", got.Scope)
	assert.Equal(t, "access", got.TokenType)
	assert.NotEmpty(t, got.ID)
	require.NotNil(t, got.ExpiresAt)
}

func TestVerify_Failures(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	good, err := svc.Sign(ctx, testClaims{}, SignOptions{Subject: "u", Issuer: iss, ExpiresIn: time.Minute})
	require.NoError(t, err)

	t.Run("wrong issuer", func(t *testing.T) {
		assert.ErrorIs(t, svc.Verify(ctx, good, "https://other", &testClaims{}), ErrInvalidToken)
	})
	t.Run("garbage", func(t *testing.T) {
		assert.ErrorIs(t, svc.Verify(ctx, "not.a.jwt", iss, &testClaims{}), ErrInvalidToken)
		assert.ErrorIs(t, svc.Verify(ctx, "", iss, nil), ErrInvalidToken)
	})
	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(good, ".")
		require.Len(t, parts, 3)
		parts[1] = parts[1][:len(parts[1])-2] + "AA"
		assert.ErrorIs(t, svc.Verify(ctx, strings.Join(parts, "."), iss, nil), ErrInvalidToken)
	})
	t.Run("other key", func(t *testing.T) {
		other := newService(t)
		assert.ErrorIs(t, other.Verify(ctx, good, iss, nil), ErrInvalidToken)
	})
	t.Run("expired", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		old := newService(t).WithClock(func() time.Time { return past })
		raw, err := old.Sign(ctx, testClaims{}, SignOptions{Issuer: iss, ExpiresIn: time.Minute})
		require.NoError(t, err)
		old.WithClock(time.Now)
		assert.ErrorIs(t, old.Verify(ctx, raw, iss, nil), ErrInvalidToken)
	})
	t.Run("no expiry", func(t *testing.T) {
		raw, err := svc.Sign(ctx, testClaims{}, SignOptions{Issuer: iss})
		require.NoError(t, err)
		assert.ErrorIs(t, svc.Verify(ctx, raw, iss, nil), ErrInvalidToken)
	})
	t.Run("hmac alg", func(t *testing.T) {
		tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{"iss": iss, "exp": time.Now().Add(time.Minute).Unix()})
		k, _ := svc.ActiveKey(ctx)
		tk.Header["kid"] = k.KID
		raw, err := tk.SignedString([]byte(k.PublicKey))
		require.NoError(t, err)
		assert.ErrorIs(t, svc.Verify(ctx, raw, iss, nil), ErrInvalidToken)
	})
}

func TestRotation_OldTokensStillVerify(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	oldKey, _ := svc.ActiveKey(ctx)

	raw, err := svc.Sign(ctx, testClaims{}, SignOptions{Issuer: iss, ExpiresIn: time.Hour})
	require.NoError(t, err)

	next, err := GenerateSigningKey()
	require.NoError(t, err)
	svc.Keystore().Rotate(next)

	require.NoError(t, svc.Verify(ctx, raw, iss, nil))

	jwks, err := svc.JWKS(ctx)
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 2)
	assert.Equal(t, next.KID, jwks.Keys[0].KeyID)
	assert.Equal(t, oldKey.KID, jwks.Keys[1].KeyID)
	assert.True(t, jwks.Keys[0].IsPublic())

	svc.Keystore().Retire(oldKey.KID)
	assert.ErrorIs(t, svc.Verify(ctx, raw, iss, nil), ErrInvalidToken)
}

func TestParseSeed_RoundTrip(t *testing.T) {
	k, err := GenerateSigningKey()
	require.NoError(t, err)

	again, err := ParseSeed(k.EncodeSeed())
	require.NoError(t, err)
	assert.Equal(t, k.KID, again.KID)

	_, err = ParseSeed("c2hvcnQ=")
	require.Error(t, err)
}
