package oauth

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
	tokens "github.com/dropDatabas3/authvital/internal/security/token"
)

func TestAuthorize_PersistsHashedCode(t *testing.T) {
	f := newFixture(t)
	_, challenge := pkcePair()

	res := f.authorize(t, f.alice.ID, AuthorizeParams{
		ClientID: "web", RedirectURI: webCallback, Scope: "openid  email openid",
		State: "xyz", Nonce: "n-1", CodeChallenge: challenge, CodeChallengeMethod: "S256",
	})

	assert.Nil(t, res.Tenant)
	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, res.Code, u.Query().Get("code"))
	assert.Equal(t, "xyz", u.Query().Get("state"))

	_, err = f.store.AuthCodes().GetByHash(f.ctx, res.Code)
	assert.ErrorIs(t, err, repository.ErrNotFound, "raw code must not be stored")

	code, err := f.store.AuthCodes().GetByHash(f.ctx, tokens.SHA256Base64URL(res.Code))
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, code.UserID)
	assert.Equal(t, f.web.ID, code.ApplicationID)
	assert.Equal(t, webCallback, code.RedirectURI)
	assert.Equal(t, "openid email", code.Scope)
	assert.Equal(t, "n-1", code.Nonce)
	assert.Equal(t, challenge, code.CodeChallenge)
	assert.Nil(t, code.UsedAt)
	assert.WithinDuration(t, f.now().Add(authCodeTTL), code.ExpiresAt, 5*time.Second)
}

func TestAuthorize_TenantFromRedirectPattern(t *testing.T) {
	f := newFixture(t)
	_, challenge := pkcePair()

	res := f.authorize(t, f.alice.ID, AuthorizeParams{
		ClientID: "web", RedirectURI: tenantCallback,
		CodeChallenge: challenge, CodeChallengeMethod: "S256",
	})
	require.NotNil(t, res.Tenant)
	assert.Equal(t, f.acme.ID, res.Tenant.TenantID)
	assert.Equal(t, "acme", res.Tenant.TenantSubdomain)

	// explicit tenant that agrees is accepted
	res = f.authorize(t, f.alice.ID, AuthorizeParams{
		ClientID: "web", RedirectURI: tenantCallback, TenantSubdomain: "ACME",
		CodeChallenge: challenge, CodeChallengeMethod: "S256",
	})
	assert.Equal(t, f.acme.ID, res.Tenant.TenantID)
}

func TestAuthorize_ExplicitTenant(t *testing.T) {
	f := newFixture(t)
	_, challenge := pkcePair()

	res := f.authorize(t, f.alice.ID, AuthorizeParams{
		ClientID: "web", RedirectURI: webCallback, TenantID: f.beta.ID,
		CodeChallenge: challenge, CodeChallengeMethod: "S256",
	})
	require.NotNil(t, res.Tenant)
	assert.Equal(t, "beta", res.Tenant.TenantSubdomain)
}

func TestAuthorize_Rejections(t *testing.T) {
	f := newFixture(t)
	_, challenge := pkcePair()
	spa := func(p AuthorizeParams) AuthorizeParams {
		if p.ClientID == "" {
			p.ClientID = "web"
		}
		if p.RedirectURI == "" {
			p.RedirectURI = webCallback
		}
		if p.ResponseType == "" {
			p.ResponseType = ResponseTypeCode
		}
		return p
	}

	cases := []struct {
		name   string
		user   string
		params AuthorizeParams
		kind   Kind
		code   string
	}{
		{"response type token", f.alice.ID, spa(AuthorizeParams{ResponseType: "token", CodeChallenge: challenge, CodeChallengeMethod: "S256"}), KindBadRequest, CodeUnsupportedResponseType},
		{"anonymous caller", "", spa(AuthorizeParams{CodeChallenge: challenge, CodeChallengeMethod: "S256"}), KindUnauthorized, CodeAccessDenied},
		{"unknown client", f.alice.ID, spa(AuthorizeParams{ClientID: "nope"}), KindUnauthorized, CodeInvalidClient},
		{"inactive client", f.alice.ID, spa(AuthorizeParams{ClientID: "disabled"}), KindUnauthorized, CodeInvalidClient},
		{"unregistered redirect", f.alice.ID, spa(AuthorizeParams{RedirectURI: "https://evil.com/cb", CodeChallenge: challenge, CodeChallengeMethod: "S256"}), KindBadRequest, CodeInvalidRequest},
		{"redirect with fragment", f.alice.ID, spa(AuthorizeParams{RedirectURI: webCallback + "#x", CodeChallenge: challenge, CodeChallengeMethod: "S256"}), KindBadRequest, CodeInvalidRequest},
		{"spa without pkce", f.alice.ID, spa(AuthorizeParams{}), KindBadRequest, CodeInvalidRequest},
		{"plain pkce downgrade", f.alice.ID, spa(AuthorizeParams{CodeChallenge: challenge, CodeChallengeMethod: "plain"}), KindBadRequest, CodeInvalidRequest},
		{"challenge without method", f.alice.ID, spa(AuthorizeParams{CodeChallenge: challenge}), KindBadRequest, CodeInvalidRequest},
		{"malformed challenge", f.alice.ID, spa(AuthorizeParams{CodeChallenge: "short", CodeChallengeMethod: "S256"}), KindBadRequest, CodeInvalidRequest},
		{"bad scope", f.alice.ID, spa(AuthorizeParams{Scope: "openid DROP;", CodeChallenge: challenge, CodeChallengeMethod: "S256"}), KindBadRequest, CodeInvalidScope},
		{"unknown tenant in pattern", f.alice.ID, spa(AuthorizeParams{RedirectURI: "https://ghost.example.com/cb", CodeChallenge: challenge, CodeChallengeMethod: "S256"}), KindBadRequest, CodeInvalidRequest},
		{"explicit tenant disagrees", f.alice.ID, spa(AuthorizeParams{RedirectURI: tenantCallback, TenantID: f.beta.ID, CodeChallenge: challenge, CodeChallengeMethod: "S256"}), KindBadRequest, CodeInvalidRequest},
		{"not a member", f.bob.ID, spa(AuthorizeParams{RedirectURI: tenantCallback, CodeChallenge: challenge, CodeChallengeMethod: "S256"}), KindUnauthorized, CodeAccessDenied},
		{"suspended member", f.alice.ID, spa(AuthorizeParams{TenantSubdomain: "gamma", CodeChallenge: challenge, CodeChallengeMethod: "S256"}), KindUnauthorized, CodeAccessDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.svc.Authorize.Authorize(f.ctx, tc.user, tc.params)
			assert.Nil(t, res)
			requireKind(t, err, tc.kind, tc.code)
		})
	}
}

func TestAuthorize_ConfidentialClientWithoutPKCE(t *testing.T) {
	f := newFixture(t)
	res := f.authorize(t, f.alice.ID, AuthorizeParams{
		ClientID: "backend", RedirectURI: "https://backend.example.com/oauth/cb",
	})
	code, err := f.store.AuthCodes().GetByHash(f.ctx, tokens.SHA256Base64URL(res.Code))
	require.NoError(t, err)
	assert.Empty(t, code.CodeChallenge)
}
