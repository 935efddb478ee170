package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authvital/internal/claims"
	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
)

func TestIntrospect_Garbage(t *testing.T) {
	f := newFixture(t)
	for _, tok := range []string{"", "   ", "garbage", "a.b.c"} {
		res := f.svc.Introspect.Introspect(f.ctx, tok, "")
		require.NotNil(t, res)
		assert.False(t, res.Active)
		assert.Empty(t, res.Sub)
	}
}

func TestIntrospect_ForeignKey(t *testing.T) {
	f := newFixture(t)
	other, err := jwtx.GenerateSigningKey()
	require.NoError(t, err)
	forged, err := jwtx.NewLocalKeyService(jwtx.NewKeystore(other)).Sign(f.ctx, claims.Access{TokenType: claims.TypeAccess},
		jwtx.SignOptions{Subject: f.alice.ID, Audience: "web", Issuer: testIssuer, ExpiresIn: time.Minute})
	require.NoError(t, err)

	assert.False(t, f.svc.Introspect.Introspect(f.ctx, forged, "").Active)
}

func TestIntrospect_AccessToken(t *testing.T) {
	f := newFixture(t)
	tok := f.webLogin(t, tenantCallback, "openid email")

	res := f.svc.Introspect.Introspect(f.ctx, tok.AccessToken, HintAccessToken)
	require.True(t, res.Active)
	assert.Equal(t, claims.TypeAccess, res.TokenType)
	assert.Equal(t, f.alice.ID, res.Sub)
	assert.Equal(t, "web", res.ClientID)
	assert.Equal(t, testIssuer, res.Iss)
	assert.Equal(t, f.acme.ID, res.TenantID)
	assert.Equal(t, "alice@example.com", res.Email)
	assert.False(t, res.IsAnonymous)
	assert.False(t, res.IsMachine)
	assert.NotZero(t, res.Exp)

	// active memberships only, suspended gamma excluded
	require.Len(t, res.Tenants, 2)
	assert.Equal(t, "acme", res.Tenants[0].TenantSlug)
	assert.Equal(t, []string{"owner"}, res.Tenants[0].Roles)
	assert.Equal(t, "beta", res.Tenants[1].TenantSlug)
}

func TestIntrospect_RefreshTokenFollowsSession(t *testing.T) {
	f := newFixture(t)
	tok := f.webLogin(t, webCallback, "")

	res := f.svc.Introspect.Introspect(f.ctx, tok.RefreshToken, HintRefreshToken)
	require.True(t, res.Active)
	assert.Equal(t, claims.TypeRefresh, res.TokenType)

	require.NoError(t, f.svc.Revoke.RevokeToken(f.ctx, tok.RefreshToken, HintRefreshToken, "web"))
	assert.False(t, f.svc.Introspect.Introspect(f.ctx, tok.RefreshToken, "").Active)
}

func TestIntrospect_M2M(t *testing.T) {
	f := newFixture(t)
	tok, err := f.svc.Token.Token(f.ctx, TokenParams{
		GrantType: GrantClientCredentials, ClientID: "reporting", ClientSecret: serviceSecret,
	})
	require.NoError(t, err)

	res := f.svc.Introspect.Introspect(f.ctx, tok.AccessToken, "")
	require.True(t, res.Active)
	assert.True(t, res.IsMachine)
	assert.Equal(t, "reporting", res.ClientID)
	assert.Equal(t, "app:reporting", res.Sub)
	assert.Empty(t, res.Tenants)
}

func TestIntrospect_IDTokenIsNotABearer(t *testing.T) {
	f := newFixture(t)
	tok := f.webLogin(t, webCallback, "openid")
	require.NotEmpty(t, tok.IDToken)
	assert.False(t, f.svc.Introspect.Introspect(f.ctx, tok.IDToken, "").Active)
}

func TestIntrospect_AnonymousFlag(t *testing.T) {
	f := newFixture(t)
	raw, err := f.keys.Sign(f.ctx, claims.Access{TokenType: claims.TypeAccess},
		jwtx.SignOptions{Subject: f.bob.ID, Audience: "web", Issuer: testIssuer, ExpiresIn: time.Minute})
	require.NoError(t, err)

	res := f.svc.Introspect.Introspect(f.ctx, raw, "")
	require.True(t, res.Active)
	assert.True(t, res.IsAnonymous)
	assert.Empty(t, res.Tenants)
}

func TestRevokeToken(t *testing.T) {
	f := newFixture(t)
	tok := f.webLogin(t, webCallback, "")
	sid := f.refreshClaims(t, tok.RefreshToken).SessionID

	t.Run("access token is a no-op", func(t *testing.T) {
		require.NoError(t, f.svc.Revoke.RevokeToken(f.ctx, tok.AccessToken, HintAccessToken, "web"))
		require.NoError(t, f.svc.Revoke.RevokeToken(f.ctx, tok.AccessToken, "", "web"))
		sess, err := f.store.RefreshSessions().Get(f.ctx, sid)
		require.NoError(t, err)
		assert.False(t, sess.Revoked)
	})
	t.Run("garbage is a no-op", func(t *testing.T) {
		assert.NoError(t, f.svc.Revoke.RevokeToken(f.ctx, "garbage", "", ""))
	})
	t.Run("empty token", func(t *testing.T) {
		requireKind(t, f.svc.Revoke.RevokeToken(f.ctx, "", "", ""), KindBadRequest, CodeInvalidRequest)
	})
	t.Run("other client cannot revoke", func(t *testing.T) {
		require.NoError(t, f.svc.Revoke.RevokeToken(f.ctx, tok.RefreshToken, "", "backend"))
		sess, err := f.store.RefreshSessions().Get(f.ctx, sid)
		require.NoError(t, err)
		assert.False(t, sess.Revoked)
	})
	t.Run("refresh token revokes its session", func(t *testing.T) {
		require.NoError(t, f.svc.Revoke.RevokeToken(f.ctx, tok.RefreshToken, "", "web"))
		sess, err := f.store.RefreshSessions().Get(f.ctx, sid)
		require.NoError(t, err)
		assert.True(t, sess.Revoked)

		_, err = f.svc.Token.Token(f.ctx, TokenParams{GrantType: GrantRefreshToken, ClientID: "web", RefreshToken: tok.RefreshToken})
		requireKind(t, err, KindUnauthorized, CodeInvalidGrant)

		// idempotent
		assert.NoError(t, f.svc.Revoke.RevokeToken(f.ctx, tok.RefreshToken, HintRefreshToken, "web"))
	})
}
