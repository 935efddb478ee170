package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
)

func TestSessions_ListRevokeAndLogoutEverywhere(t *testing.T) {
	f := newFixture(t)
	redirect := "https://backend.example.com/oauth/cb"

	webTok := f.webLogin(t, webCallback, "")
	f.webLogin(t, tenantCallback, "")
	res := f.authorize(t, f.alice.ID, AuthorizeParams{ClientID: "backend", RedirectURI: redirect})
	_, err := f.svc.Token.Token(f.ctx, TokenParams{
		GrantType: GrantAuthorizationCode, ClientID: "backend", ClientSecret: backendSecret,
		Code: res.Code, RedirectURI: redirect, UserAgent: "curl/8", IPAddress: "10.0.0.7",
	})
	require.NoError(t, err)

	all, err := f.svc.Sessions.GetUserSessions(f.ctx, f.alice.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	webOnly, err := f.svc.Sessions.GetUserSessions(f.ctx, f.alice.ID, f.web.ID)
	require.NoError(t, err)
	require.Len(t, webOnly, 2)

	backendOnly, err := f.svc.Sessions.GetUserSessions(f.ctx, f.alice.ID, f.backend.ID)
	require.NoError(t, err)
	require.Len(t, backendOnly, 1)
	assert.Equal(t, "curl/8", backendOnly[0].UserAgent)
	assert.Equal(t, "10.0.0.7", backendOnly[0].IPAddress)

	sid := f.refreshClaims(t, webTok.RefreshToken).SessionID

	// bob cannot revoke alice's session
	r, err := f.svc.Sessions.RevokeUserSession(f.ctx, f.bob.ID, sid)
	require.NoError(t, err)
	assert.False(t, r.Success)

	r, err = f.svc.Sessions.RevokeUserSession(f.ctx, f.alice.ID, sid)
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, "session revoked", r.Message)

	r, err = f.svc.Sessions.RevokeSession(f.ctx, sid)
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, "session already revoked", r.Message)

	r, err = f.svc.Sessions.RevokeSession(f.ctx, "missing")
	require.NoError(t, err)
	assert.False(t, r.Success)

	out, err := f.svc.Sessions.RevokeAllUserSessions(f.ctx, f.alice.ID, f.web.ID)
	require.NoError(t, err)
	assert.Equal(t, RevokeAllResult{Success: true, Count: 1}, out)

	out, err = f.svc.Sessions.RevokeAllUserSessions(f.ctx, f.alice.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)

	all, err = f.svc.Sessions.GetUserSessions(f.ctx, f.alice.ID, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSessions_RevocationIsPermanent(t *testing.T) {
	f := newFixture(t)
	tok := f.webLogin(t, webCallback, "")
	sid := f.refreshClaims(t, tok.RefreshToken).SessionID

	_, err := f.svc.Sessions.RevokeSession(f.ctx, sid)
	require.NoError(t, err)
	sess, err := f.store.RefreshSessions().Get(f.ctx, sid)
	require.NoError(t, err)
	first := *sess.RevokedAt

	f.advance(time.Minute)
	_, err = f.svc.Sessions.RevokeAllUserSessions(f.ctx, f.alice.ID, "")
	require.NoError(t, err)
	sess, err = f.store.RefreshSessions().Get(f.ctx, sid)
	require.NoError(t, err)
	assert.True(t, sess.Revoked)
	assert.Equal(t, first, *sess.RevokedAt, "revoked_at is not rewritten")
}

func TestSessions_ApplicationID(t *testing.T) {
	f := newFixture(t)
	id, err := f.svc.Sessions.ApplicationID(f.ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, f.web.ID, id)

	id, err = f.svc.Sessions.ApplicationID(f.ctx, "")
	require.NoError(t, err)
	assert.Empty(t, id)

	_, err = f.svc.Sessions.ApplicationID(f.ctx, "ghost")
	requireKind(t, err, KindBadRequest, CodeInvalidRequest)
}

func TestUserInfo(t *testing.T) {
	f := newFixture(t)
	info, err := f.svc.UserInfo.GetUserInfo(f.ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, info.Sub)
	assert.Equal(t, "Alice Liddell", info.Name)
	assert.True(t, info.EmailVerified)
	require.Len(t, info.Tenants, 2)

	_, err = f.svc.UserInfo.GetUserInfo(f.ctx, "ghost")
	requireKind(t, err, KindUnauthorized, CodeInvalidToken)
}

func TestValidateRedirectURI(t *testing.T) {
	f := newFixture(t)
	f.store.PutApplication(repository.Application{
		ClientID: "patterns", IsActive: true,
		RedirectURIs: []string{"https://{tenant}.example.com/cb", "https://*.example.com/cb"},
	})

	cases := []struct {
		client, uri string
		valid       bool
		tenant      string
	}{
		{"patterns", "https://acme.example.com/cb", true, "acme"},
		{"patterns", "https://app1.example.com/cb", false, ""}, // {tenant} matched first: unknown tenant is a hard failure
		{"patterns", "https://evil.com/cb", false, ""},
		{"web", "http://sub.localhost:5173/cb", true, ""},
		{"web", "javascript:alert(1)", false, ""},
		{"web", "https://a.com/cb#frag", false, ""},
		{"web", "https://a.com/%0d%0aSet-Cookie:x", false, ""},
		{"ghost", webCallback, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.uri, func(t *testing.T) {
			res, err := f.svc.Redirect.ValidateRedirectURI(f.ctx, tc.client, tc.uri)
			require.NoError(t, err)
			assert.Equal(t, tc.valid, res.Valid, res.Reason)
			assert.Equal(t, tc.tenant, res.Tenant)
			if !tc.valid {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}

	wild := f.store.PutApplication(repository.Application{
		ClientID: "wild", IsActive: true, RedirectURIs: []string{"https://*.example.com/cb"},
	})
	res, err := f.svc.Redirect.ValidateRedirectURI(f.ctx, wild.ClientID, "https://app1.example.com/cb")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = f.svc.Redirect.ValidateRedirectURI(f.ctx, "", "")
	requireKind(t, err, KindBadRequest, CodeInvalidRequest)
}

func TestDiscovery(t *testing.T) {
	f := newFixture(t)
	doc := f.svc.Discovery.Document()
	assert.Equal(t, testIssuer, doc.Issuer)
	assert.Equal(t, testIssuer+"/oauth/token", doc.TokenEndpoint)
	assert.Equal(t, []string{"S256"}, doc.CodeChallengeMethodsSupported)
	assert.ElementsMatch(t, []string{GrantAuthorizationCode, GrantRefreshToken, GrantClientCredentials}, doc.GrantTypesSupported)

	set, err := f.svc.Discovery.JWKS(f.ctx)
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)
	active, err := f.keys.ActiveKey(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, active.KID, set.Keys[0].KeyID)
}

func TestCodeJanitor(t *testing.T) {
	f := newFixture(t)
	_, challenge := pkcePair()
	f.authorize(t, f.alice.ID, AuthorizeParams{
		ClientID: "web", RedirectURI: webCallback, CodeChallenge: challenge, CodeChallengeMethod: "S256",
	})

	n, err := f.svc.Janitor.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.advance(authCodeTTL + time.Second)
	n, err = f.svc.Janitor.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
