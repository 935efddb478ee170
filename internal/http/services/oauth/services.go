// Package oauth is the authorization and token engine: authorization codes,
// token issuance, refresh sessions, M2M, introspection and revocation.
//
// Services return *Error; the HTTP layer maps Kind to a status code.
package oauth

import (
	"time"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
	"github.com/dropDatabas3/authvital/internal/metrics"
	"github.com/dropDatabas3/authvital/internal/tenant"
	"github.com/dropDatabas3/authvital/internal/validation"
)

const (
	authCodeTTL       = 10 * time.Minute
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// Deps contains the collaborators shared by every OAuth service.
type Deps struct {
	Applications    repository.ApplicationRepository
	AuthCodes       repository.AuthCodeRepository
	RefreshSessions repository.RefreshSessionRepository
	Users           repository.UserRepository
	Tenants         repository.TenantRepository
	Memberships     repository.MembershipRepository
	Licenses        repository.LicenseRepository

	Keys      jwtx.KeyService
	Validator *validation.RedirectValidator
	Resolver  *tenant.Resolver
	Metrics   *metrics.Recorder

	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) defaults() {
	if d.AccessTTL <= 0 {
		d.AccessTTL = defaultAccessTTL
	}
	if d.RefreshTTL <= 0 {
		d.RefreshTTL = defaultRefreshTTL
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Resolver == nil && d.Tenants != nil {
		d.Resolver = tenant.NewResolver(d.Tenants, time.Minute)
	}
	if d.Validator == nil {
		var lookup validation.TenantLookup
		if d.Resolver != nil {
			lookup = d.Resolver
		}
		d.Validator = validation.NewRedirectValidator(lookup, validation.DefaultRedirectOptions(true))
	}
}

// Services groups the OAuth services.
type Services struct {
	Authorize  AuthorizeService
	Token      TokenService
	Sessions   SessionService
	Introspect IntrospectService
	Revoke     RevokeService
	UserInfo   UserInfoService
	Redirect   RedirectService
	Discovery  DiscoveryService
	Janitor    *CodeJanitor
}

// NewServices wires the OAuth services over d.
func NewServices(d Deps) Services {
	d.defaults()
	sessions := newSessionService(d)
	issuer := newTokenIssuer(d)
	return Services{
		Authorize:  newAuthorizeService(d),
		Token:      newTokenService(d, issuer, sessions),
		Sessions:   sessions,
		Introspect: newIntrospectService(d),
		Revoke:     newRevokeService(d, sessions),
		UserInfo:   newUserInfoService(d),
		Redirect:   newRedirectService(d),
		Discovery:  newDiscoveryService(d),
		Janitor:    NewCodeJanitor(d.AuthCodes, d.Now),
	}
}
