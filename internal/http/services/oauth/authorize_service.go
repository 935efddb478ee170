package oauth

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/dropDatabas3/authvital/internal/audit"
	"github.com/dropDatabas3/authvital/internal/claims"
	"github.com/dropDatabas3/authvital/internal/domain/repository"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
	"github.com/dropDatabas3/authvital/internal/security/pkce"
	tokens "github.com/dropDatabas3/authvital/internal/security/token"
	"github.com/dropDatabas3/authvital/internal/validation"
)

// AuthorizeService issues authorization codes.
type AuthorizeService interface {
	// Authorize validates the request for the authenticated userID and
	// persists a single-use code bound to the exact redirect_uri.
	Authorize(ctx context.Context, userID string, p AuthorizeParams) (*AuthorizeResult, error)
}

type authorizeService struct {
	d Deps
}

func newAuthorizeService(d Deps) *authorizeService { return &authorizeService{d: d} }

func (s *authorizeService) Authorize(ctx context.Context, userID string, p AuthorizeParams) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authorize"), logger.ClientID(p.ClientID))

	if p.ResponseType != ResponseTypeCode {
		return nil, badRequest(CodeUnsupportedResponseType, "response_type must be code")
	}
	if userID == "" {
		return nil, unauthorized(CodeAccessDenied, "authentication required")
	}
	if p.ClientID == "" || p.RedirectURI == "" {
		return nil, badRequest(CodeInvalidRequest, "client_id and redirect_uri are required")
	}

	app, err := s.d.Applications.GetByClientID(ctx, p.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, unauthorized(CodeInvalidClient, "unknown client")
		}
		return nil, internalErr(err)
	}
	if !app.IsActive {
		return nil, unauthorized(CodeInvalidClient, "client is disabled")
	}

	res := s.d.Validator.Validate(ctx, p.RedirectURI, app.RedirectURIs)
	if !res.Valid {
		audit.Log(ctx, audit.EventRedirectRejected, logger.ClientID(p.ClientID), logger.Reason(res.Reason))
		return nil, badRequest(CodeInvalidRequest, "invalid redirect_uri: "+res.Reason)
	}

	if p.CodeChallenge != "" || p.CodeChallengeMethod != "" {
		if !pkce.SupportedMethod(p.CodeChallengeMethod) {
			return nil, badRequest(CodeInvalidRequest, "code_challenge_method must be S256")
		}
		if len(p.CodeChallenge) != 43 {
			return nil, badRequest(CodeInvalidRequest, "malformed code_challenge")
		}
	}
	if app.IsSPA() && p.CodeChallenge == "" {
		return nil, badRequest(CodeInvalidRequest, "PKCE with S256 is required for public clients")
	}

	scope := claims.Normalize(p.Scope)
	if scope != "" && !validation.ValidScope(scope) {
		return nil, badRequest(CodeInvalidScope, "malformed scope")
	}

	scopeT, err := s.resolveTenant(ctx, res.ExtractedTenant, p)
	if err != nil {
		return nil, err
	}
	if scopeT.set() {
		m, err := s.d.Memberships.Get(ctx, userID, scopeT.TenantID)
		switch {
		case repository.IsNotFound(err):
			return nil, unauthorized(CodeAccessDenied, "user is not a member of the tenant")
		case err != nil:
			return nil, internalErr(err)
		case m.Status != repository.MembershipActive:
			return nil, unauthorized(CodeAccessDenied, "membership is not active")
		}
	}

	code, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, internalErr(err)
	}
	now := s.d.Now().UTC()
	ac := repository.AuthorizationCode{
		CodeHash:            tokens.SHA256Base64URL(code),
		UserID:              userID,
		ApplicationID:       app.ID,
		RedirectURI:         p.RedirectURI,
		Scope:               scope,
		State:               p.State,
		Nonce:               p.Nonce,
		CodeChallenge:       p.CodeChallenge,
		CodeChallengeMethod: p.CodeChallengeMethod,
		ExpiresAt:           now.Add(authCodeTTL),
		CreatedAt:           now,
	}
	if scopeT.set() {
		ac.TenantID = scopeT.TenantID
		ac.TenantSubdomain = scopeT.TenantSubdomain
	}
	if err := s.d.AuthCodes.Create(ctx, ac); err != nil {
		log.Error("persist authorization code failed", logger.Err(err))
		return nil, internalErr(err)
	}

	log.Info("authorization code issued", logger.UserID(userID), logger.TenantID(ac.TenantID))
	return &AuthorizeResult{
		Code:        code,
		State:       p.State,
		RedirectURI: p.RedirectURI,
		RedirectURL: withCode(p.RedirectURI, code, p.State),
		Tenant:      scopeT,
		ExpiresAt:   ac.ExpiresAt,
	}, nil
}

// resolveTenant picks the code's tenant scope. A {tenant} match on the
// redirect_uri wins; explicit parameters must agree with it.
func (s *authorizeService) resolveTenant(ctx context.Context, extracted string, p AuthorizeParams) (*TenantScope, error) {
	var (
		t   *repository.Tenant
		err error
	)
	switch {
	case extracted != "":
		t, err = s.d.Resolver.BySlug(ctx, extracted)
	case p.TenantID != "":
		t, err = s.d.Tenants.GetByID(ctx, p.TenantID)
	case p.TenantSubdomain != "":
		t, err = s.d.Resolver.BySlug(ctx, p.TenantSubdomain)
	default:
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, badRequest(CodeInvalidRequest, "unknown tenant")
		}
		return nil, internalErr(err)
	}
	if p.TenantID != "" && p.TenantID != t.ID {
		return nil, badRequest(CodeInvalidRequest, "tenant_id does not match redirect_uri tenant")
	}
	if p.TenantSubdomain != "" && !strings.EqualFold(p.TenantSubdomain, t.Slug) {
		return nil, badRequest(CodeInvalidRequest, "tenant_subdomain does not match redirect_uri tenant")
	}
	return &TenantScope{TenantID: t.ID, TenantSubdomain: t.Slug}, nil
}

func withCode(redirectURI, code, state string) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return redirectURI
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
