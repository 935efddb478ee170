package oauth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/authvital/internal/claims"
	"github.com/dropDatabas3/authvital/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
	"github.com/dropDatabas3/authvital/internal/metrics"
	"github.com/dropDatabas3/authvital/internal/security/secret"
	"github.com/dropDatabas3/authvital/internal/store/memory"
	"github.com/dropDatabas3/authvital/internal/tenant"
	"github.com/dropDatabas3/authvital/internal/validation"
)

const (
	testIssuer     = "https://auth.example.com"
	backendSecret  = "backend-secret-value"
	serviceSecret  = "service-secret-value"
	webCallback    = "https://app.example.com/callback"
	tenantCallback = "https://acme.example.com/cb"
)

var (
	hashOnce                 sync.Once
	backendHash, serviceHash string
)

func secretHashes(t *testing.T) (string, string) {
	hashOnce.Do(func() {
		var err error
		backendHash, err = secret.Hash(backendSecret)
		require.NoError(t, err)
		serviceHash, err = secret.Hash(serviceSecret)
		require.NoError(t, err)
	})
	return backendHash, serviceHash
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	deps    Deps
	svc     Services
	keys    *jwtx.LocalKeyService
	metrics *metrics.Recorder
	reg     *prometheus.Registry

	mu     sync.Mutex
	offset time.Duration

	alice, bob        repository.User
	acme, beta, gamma repository.Tenant
	web, backend, m2m repository.Application
	bare, disabled    repository.Application
	acmeMembership    repository.Membership
}

func (f *fixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Now().Add(f.offset)
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.offset += d
	f.mu.Unlock()
}

type option func(*Deps)

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	bh, sh := secretHashes(t)

	st := memory.New()
	f := &fixture{ctx: context.Background(), store: st}

	f.acme = st.PutTenant(repository.Tenant{Slug: "acme", Name: "Acme Inc"})
	f.beta = st.PutTenant(repository.Tenant{Slug: "beta", Name: "Beta LLC"})
	f.gamma = st.PutTenant(repository.Tenant{Slug: "gamma", Name: "Gamma SA"})

	f.alice = st.PutUser(repository.User{
		Email: "alice@example.com", EmailVerified: true, GivenName: "Alice", FamilyName: "Liddell",
	})
	f.bob = st.PutUser(repository.User{Email: "bob@example.com", IsAnonymous: true})

	f.web = st.PutApplication(repository.Application{
		ClientID: "web", Name: "Web", Type: repository.AppTypeSPA, IsActive: true,
		RedirectURIs:  []string{webCallback, "https://{tenant}.example.com/cb", "http://*.localhost:5173/cb"},
		LicensingMode: repository.LicensingTenantWide,
	})
	f.backend = st.PutApplication(repository.Application{
		ClientID: "backend", Name: "Backend", Type: repository.AppTypeConfidential, IsActive: true,
		ClientSecretHash: bh, RedirectURIs: []string{"https://backend.example.com/oauth/cb"},
		LicensingMode:    repository.LicensingPerSeat, RefreshTokenTTL: time.Hour,
	})
	f.m2m = st.PutApplication(repository.Application{
		ClientID: "reporting", Name: "Reporting", Type: repository.AppTypeConfidential, IsActive: true,
		ClientSecretHash: sh, AccessTokenTTL: 5 * time.Minute,
	})
	f.bare = st.PutApplication(repository.Application{
		ClientID: "bare", Name: "No secret", Type: repository.AppTypeConfidential, IsActive: true,
		RedirectURIs: []string{"https://bare.example.com/cb"},
	})
	f.disabled = st.PutApplication(repository.Application{
		ClientID: "disabled", Type: repository.AppTypeConfidential, IsActive: false,
		RedirectURIs: []string{webCallback},
	})

	f.acmeMembership = st.PutMembership(repository.Membership{
		UserID: f.alice.ID, TenantID: f.acme.ID,
		Roles: []repository.TenantRole{{Slug: repository.RoleOwner, Permissions: []string{"reports:export"}}},
	})
	betaM := st.PutMembership(repository.Membership{
		UserID: f.alice.ID, TenantID: f.beta.ID,
		Roles: []repository.TenantRole{{Slug: "member", Permissions: []string{"docs:read"}}},
	})
	st.PutMembership(repository.Membership{
		UserID: f.alice.ID, TenantID: f.gamma.ID, Status: repository.MembershipSuspended,
		Roles: []repository.TenantRole{{Slug: "admin", Permissions: []string{"gamma:all"}}},
	})
	st.SetApplicationRoles(f.acmeMembership.ID, f.web.ID, "editor", "viewer")
	st.SetApplicationRoles(betaM.ID, f.web.ID, "beta-app-role")
	st.SetTenantLicense(f.acme.ID, f.web.ID, repository.License{
		TypeSlug: "pro", TypeName: "Pro", Features: []string{"sso", "audit"},
	})

	key, err := jwtx.GenerateSigningKey()
	require.NoError(t, err)
	f.keys = jwtx.NewLocalKeyService(jwtx.NewKeystore(key))
	f.reg = prometheus.NewRegistry()
	f.metrics = metrics.NewRecorder(f.reg)

	resolver := tenant.NewResolver(st.Tenants(), time.Minute)
	f.deps = Deps{
		Applications:    st.Applications(),
		AuthCodes:       st.AuthCodes(),
		RefreshSessions: st.RefreshSessions(),
		Users:           st.Users(),
		Tenants:         st.Tenants(),
		Memberships:     st.Memberships(),
		Licenses:        st.Licenses(),
		Keys:            f.keys,
		Resolver:        resolver,
		Validator: validation.NewRedirectValidator(resolver, validation.RedirectOptions{
			AllowHTTP: true, ValidateTenantExists: true,
		}),
		Metrics: f.metrics,
		Issuer:  testIssuer,
		Now:     f.now,
	}
	for _, o := range opts {
		o(&f.deps)
	}
	f.svc = NewServices(f.deps)
	return f
}

// pkcePair returns a verifier and its S256 challenge.
func pkcePair() (string, string) {
	v := oauth2.GenerateVerifier()
	return v, oauth2.S256ChallengeFromVerifier(v)
}

func (f *fixture) authorize(t *testing.T, userID string, p AuthorizeParams) *AuthorizeResult {
	t.Helper()
	if p.ResponseType == "" {
		p.ResponseType = ResponseTypeCode
	}
	res, err := f.svc.Authorize.Authorize(f.ctx, userID, p)
	require.NoError(t, err)
	require.NotEmpty(t, res.Code)
	return res
}

// webLogin runs authorize + code exchange for alice on the SPA.
func (f *fixture) webLogin(t *testing.T, redirect, scope string) *TokenResponse {
	t.Helper()
	verifier, challenge := pkcePair()
	res := f.authorize(t, f.alice.ID, AuthorizeParams{
		ClientID: "web", RedirectURI: redirect, Scope: scope,
		CodeChallenge: challenge, CodeChallengeMethod: "S256",
	})
	tok, err := f.svc.Token.Token(f.ctx, TokenParams{
		GrantType: GrantAuthorizationCode, ClientID: "web", Code: res.Code,
		RedirectURI: redirect, CodeVerifier: verifier,
	})
	require.NoError(t, err)
	return tok
}

func (f *fixture) accessClaims(t *testing.T, raw string) claims.Access {
	t.Helper()
	var c claims.Access
	require.NoError(t, f.keys.Verify(f.ctx, raw, testIssuer, &c))
	return c
}

func (f *fixture) refreshClaims(t *testing.T, raw string) claims.Refresh {
	t.Helper()
	var c claims.Refresh
	require.NoError(t, f.keys.Verify(f.ctx, raw, testIssuer, &c))
	return c
}

func requireKind(t *testing.T, err error, k Kind, code string) *Error {
	t.Helper()
	require.Error(t, err)
	oe := AsError(err)
	require.Equal(t, k, oe.Kind, "error: %v", err)
	if code != "" {
		require.Equal(t, code, oe.Code)
	}
	return oe
}

// Wrappers used to observe or break collaborators.

type countingSessions struct {
	repository.RefreshSessionRepository
	mu   sync.Mutex
	gets int
}

func (c *countingSessions) Get(ctx context.Context, id string) (*repository.RefreshSession, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.RefreshSessionRepository.Get(ctx, id)
}

// flakyMemberships fails Get while down is set.
type flakyMemberships struct {
	repository.MembershipRepository
	down atomic.Bool
}

func (m *flakyMemberships) Get(ctx context.Context, userID, tenantID string) (*repository.Membership, error) {
	if m.down.Load() {
		return nil, errors.New("db timeout")
	}
	return m.MembershipRepository.Get(ctx, userID, tenantID)
}

// flakySessions fails Rotate while down is set, without touching the store.
type flakySessions struct {
	repository.RefreshSessionRepository
	down atomic.Bool
}

func (s *flakySessions) Rotate(ctx context.Context, oldID string, in repository.CreateRefreshSessionInput, at time.Time) (*repository.RefreshSession, error) {
	if s.down.Load() {
		return nil, errors.New("connection reset")
	}
	return s.RefreshSessionRepository.Rotate(ctx, oldID, in, at)
}

type failingLicenses struct{ err error }

func (f failingLicenses) GetTenantSubscription(context.Context, string, string) (*repository.License, error) {
	return nil, f.err
}

func (f failingLicenses) GetUserAssignment(context.Context, string, string, string) (*repository.License, error) {
	return nil, f.err
}

// counter reads a counter value from the fixture registry; 0 when absent.
func (f *fixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := f.reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
