package oauth

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authvital/internal/claims"
	"github.com/dropDatabas3/authvital/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

// OwnerPermissions is granted to every tenant owner on top of the
// permissions attached to their roles.
var OwnerPermissions = []string{
	"tenant:read",
	"tenant:update",
	"tenant:delete",
	"members:read",
	"members:invite",
	"members:remove",
	"members:manage-roles",
	"applications:read",
	"applications:manage",
	"licenses:read",
	"licenses:manage",
	"billing:read",
	"billing:manage",
	"domains:manage",
	"sso:manage",
	"audit:read",
}

// errRotationLost means the session being rotated was already revoked or
// is gone. Nothing was persisted.
var errRotationLost = errors.New("refresh session already rotated")

// issueInput is what the issuer needs to mint a token set.
type issueInput struct {
	User   *repository.User
	App    *repository.Application
	Scope  string
	Nonce  string
	Tenant *TenantScope

	UserAgent string
	IPAddress string

	// RotatedFrom, when set, is revoked in the same store operation that
	// creates the new session.
	RotatedFrom string
}

// tenantClaims is the result of enrichment for a tenant-scoped token.
type tenantClaims struct {
	roles       []string
	permissions []string
	appRoles    []string
	license     *claims.License
}

type tokenIssuer struct {
	d Deps
}

func newTokenIssuer(d Deps) *tokenIssuer { return &tokenIssuer{d: d} }

func (ti *tokenIssuer) accessTTL(app *repository.Application) time.Duration {
	if app != nil && app.AccessTokenTTL > 0 {
		return app.AccessTokenTTL
	}
	return ti.d.AccessTTL
}

func (ti *tokenIssuer) refreshTTL(app *repository.Application) time.Duration {
	if app != nil && app.RefreshTokenTTL > 0 {
		return app.RefreshTokenTTL
	}
	return ti.d.RefreshTTL
}

// GenerateTokens builds access, refresh and (with openid) ID tokens, and
// persists the refresh session the refresh token points to. Every step that
// can fail runs before the single store write, so a failure leaves the
// sessions untouched.
func (ti *tokenIssuer) GenerateTokens(ctx context.Context, in issueInput) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.issuer.generate"),
		logger.UserID(in.User.ID), logger.ClientID(in.App.ClientID))

	access := claims.Access{
		TokenType: claims.TypeAccess,
		Scope:     in.Scope,
		ClientID:  in.App.ClientID,
	}
	if claims.HasScope(in.Scope, claims.ScopeEmail) {
		access.Email = in.User.Email
	}
	if claims.HasScope(in.Scope, claims.ScopeProfile) {
		access.GivenName = in.User.GivenName
		access.FamilyName = in.User.FamilyName
	}
	if in.Tenant.set() {
		access.TenantID = in.Tenant.TenantID
		access.TenantSubdomain = in.Tenant.TenantSubdomain
		tc, err := ti.enrichTenant(ctx, in.User.ID, in.App, in.Tenant.TenantID, log)
		if err != nil {
			return nil, internalErr(err)
		}
		access.TenantRoles = tc.roles
		access.TenantPermissions = tc.permissions
		access.AppRoles = tc.appRoles
		access.License = tc.license
	}

	accessTTL := ti.accessTTL(in.App)
	at, err := ti.d.Keys.Sign(ctx, access, jwtx.SignOptions{
		Subject:   in.User.ID,
		Audience:  in.App.ClientID,
		Issuer:    ti.d.Issuer,
		ExpiresIn: accessTTL,
	})
	if err != nil {
		log.Error("sign access token failed", logger.Err(err))
		return nil, internalErr(err)
	}

	refreshTTL := ti.refreshTTL(in.App)
	sess := repository.CreateRefreshSessionInput{
		ID:            uuid.NewString(),
		UserID:        in.User.ID,
		ApplicationID: in.App.ID,
		Scope:         in.Scope,
		UserAgent:     in.UserAgent,
		IPAddress:     in.IPAddress,
		RotatedFrom:   in.RotatedFrom,
		ExpiresAt:     ti.d.Now().UTC().Add(refreshTTL),
	}
	if in.Tenant.set() {
		sess.TenantID = in.Tenant.TenantID
		sess.TenantSubdomain = in.Tenant.TenantSubdomain
	}

	rt, err := ti.d.Keys.Sign(ctx, claims.Refresh{
		SessionID:       sess.ID,
		TokenType:       claims.TypeRefresh,
		Scope:           in.Scope,
		TenantID:        sess.TenantID,
		TenantSubdomain: sess.TenantSubdomain,
	}, jwtx.SignOptions{
		Subject:   in.User.ID,
		Audience:  in.App.ClientID,
		Issuer:    ti.d.Issuer,
		ExpiresIn: refreshTTL,
	})
	if err != nil {
		log.Error("sign refresh token failed", logger.Err(err))
		return nil, internalErr(err)
	}

	resp := &TokenResponse{
		AccessToken:  at,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTTL.Seconds()),
		RefreshToken: rt,
		Scope:        in.Scope,
	}

	if claims.HasScope(in.Scope, claims.ScopeOpenID) {
		id := claims.ID{
			Email:      in.User.Email,
			GivenName:  in.User.GivenName,
			FamilyName: in.User.FamilyName,
			Nonce:      in.Nonce,
		}
		resp.IDToken, err = ti.d.Keys.Sign(ctx, id, jwtx.SignOptions{
			Subject:   in.User.ID,
			Audience:  in.App.ClientID,
			Issuer:    ti.d.Issuer,
			ExpiresIn: accessTTL,
		})
		if err != nil {
			log.Error("sign id token failed", logger.Err(err))
			return nil, internalErr(err)
		}
	}

	if err := ti.persistSession(ctx, sess); err != nil {
		if errors.Is(err, errRotationLost) {
			return nil, err
		}
		log.Error("persist refresh session failed", logger.Err(err))
		return nil, internalErr(err)
	}

	log.Debug("tokens issued", logger.SessionID(sess.ID), logger.TenantID(sess.TenantID))
	return resp, nil
}

// persistSession creates the session, or rotates RotatedFrom into it.
func (ti *tokenIssuer) persistSession(ctx context.Context, in repository.CreateRefreshSessionInput) error {
	if in.RotatedFrom == "" {
		_, err := ti.d.RefreshSessions.Create(ctx, in)
		return err
	}
	_, err := ti.d.RefreshSessions.Rotate(ctx, in.RotatedFrom, in, ti.d.Now().UTC())
	if repository.IsAlreadyUsed(err) || repository.IsNotFound(err) {
		return errRotationLost
	}
	return err
}

// enrichTenant loads roles, permissions, app roles and license for a single
// tenant. Only the scoped tenant is ever read.
func (ti *tokenIssuer) enrichTenant(ctx context.Context, userID string, app *repository.Application, tenantID string, log *zap.Logger) (tenantClaims, error) {
	var (
		tc      tenantClaims
		license *claims.License
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := ti.d.Memberships.Get(gctx, userID, tenantID)
		if repository.IsNotFound(err) {
			log.Warn("no membership for tenant scoped token", logger.TenantID(tenantID))
			return nil
		}
		if err != nil {
			return err
		}
		if m.Status != repository.MembershipActive {
			log.Warn("membership not active", logger.TenantID(tenantID), logger.String("status", m.Status))
			return nil
		}
		tc.roles, tc.permissions = rolesAndPermissions(m)
		appRoles, err := ti.d.Memberships.ListApplicationRoles(gctx, m.ID, app.ID)
		if err != nil {
			return err
		}
		tc.appRoles = appRoles
		return nil
	})
	g.Go(func() error {
		license = ti.resolveLicense(gctx, userID, app, tenantID, log)
		return nil
	})
	if err := g.Wait(); err != nil {
		return tenantClaims{}, err
	}
	tc.license = license
	return tc, nil
}

func rolesAndPermissions(m *repository.Membership) (roles, perms []string) {
	roles = make([]string, 0, len(m.Roles))
	var explicit []string
	for _, r := range m.Roles {
		roles = append(roles, r.Slug)
		explicit = append(explicit, r.Permissions...)
	}
	sort.Strings(roles)
	if m.IsOwner() {
		return roles, claims.Union(OwnerPermissions, explicit)
	}
	return roles, claims.Union(explicit)
}

// resolveLicense never fails the token: errors are logged and the claim omitted.
func (ti *tokenIssuer) resolveLicense(ctx context.Context, userID string, app *repository.Application, tenantID string, log *zap.Logger) *claims.License {
	if ti.d.Licenses == nil {
		return nil
	}
	var (
		l   *repository.License
		err error
	)
	switch app.LicensingMode {
	case repository.LicensingPerSeat:
		l, err = ti.d.Licenses.GetUserAssignment(ctx, tenantID, userID, app.ID)
	case repository.LicensingFree, repository.LicensingTenantWide, "":
		l, err = ti.d.Licenses.GetTenantSubscription(ctx, tenantID, app.ID)
	default:
		log.Warn("unknown licensing mode", logger.String("licensing_mode", app.LicensingMode))
		return nil
	}
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Warn("license lookup failed, omitting claim", logger.TenantID(tenantID), logger.Err(err))
		}
		return nil
	}
	features := l.Features
	if features == nil {
		features = []string{}
	}
	return &claims.License{Type: l.TypeSlug, Name: l.TypeName, Features: features}
}

// signM2M mints a client_credentials access token.
func (ti *tokenIssuer) signM2M(ctx context.Context, app *repository.Application, scope string) (string, time.Duration, error) {
	ttl := ti.accessTTL(app)
	tok, err := ti.d.Keys.Sign(ctx, claims.M2M{
		TokenType: claims.TypeM2M,
		Scope:     scope,
		ClientID:  app.ClientID,
	}, jwtx.SignOptions{
		Subject:   claims.M2MSubjectPrefix + app.ClientID,
		Audience:  app.ClientID,
		Issuer:    ti.d.Issuer,
		ExpiresIn: ttl,
	})
	return tok, ttl, err
}
