package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/authvital/internal/audit"
	"github.com/dropDatabas3/authvital/internal/claims"
	"github.com/dropDatabas3/authvital/internal/domain/repository"
	"github.com/dropDatabas3/authvital/internal/metrics"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
	"github.com/dropDatabas3/authvital/internal/security/pkce"
	"github.com/dropDatabas3/authvital/internal/security/secret"
	tokens "github.com/dropDatabas3/authvital/internal/security/token"
	"github.com/dropDatabas3/authvital/internal/validation"
)

// TokenService handles the token endpoint.
type TokenService interface {
	// Token dispatches on p.GrantType.
	Token(ctx context.Context, p TokenParams) (*TokenResponse, error)

	// ExchangeAuthorizationCode handles grant_type=authorization_code.
	ExchangeAuthorizationCode(ctx context.Context, p TokenParams) (*TokenResponse, error)

	// ExchangeRefreshToken handles grant_type=refresh_token (mandatory rotation).
	ExchangeRefreshToken(ctx context.Context, p TokenParams) (*TokenResponse, error)

	// ExchangeClientCredentials handles grant_type=client_credentials (M2M).
	ExchangeClientCredentials(ctx context.Context, p TokenParams) (*TokenResponse, error)
}

type tokenService struct {
	d        Deps
	issuer   *tokenIssuer
	sessions *sessionService
}

func newTokenService(d Deps, issuer *tokenIssuer, sessions *sessionService) *tokenService {
	return &tokenService{d: d, issuer: issuer, sessions: sessions}
}

func (s *tokenService) Token(ctx context.Context, p TokenParams) (*TokenResponse, error) {
	switch p.GrantType {
	case GrantAuthorizationCode:
		return s.ExchangeAuthorizationCode(ctx, p)
	case GrantRefreshToken:
		return s.ExchangeRefreshToken(ctx, p)
	case GrantClientCredentials:
		return s.ExchangeClientCredentials(ctx, p)
	case "":
		return nil, badRequest(CodeInvalidRequest, "grant_type is required")
	default:
		s.d.Metrics.Grant("unsupported", metrics.ResultFailure)
		return nil, badRequest(CodeUnsupportedGrantType, "unsupported grant_type")
	}
}

// observe records the grant outcome. Call as defer with a pointer to the
// named error result.
func (s *tokenService) observe(grant string, start time.Time, err *error) {
	if *err != nil {
		s.d.Metrics.Grant(grant, metrics.ResultFailure)
		return
	}
	s.d.Metrics.Grant(grant, metrics.ResultSuccess)
	s.d.Metrics.ObserveIssue(grant, start)
}

func (s *tokenService) ExchangeAuthorizationCode(ctx context.Context, p TokenParams) (resp *TokenResponse, err error) {
	defer s.observe(GrantAuthorizationCode, time.Now(), &err)
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.authcode"),
		logger.ClientID(p.ClientID))

	if p.Code == "" || p.ClientID == "" || p.RedirectURI == "" {
		return nil, badRequest(CodeInvalidRequest, "code, client_id and redirect_uri are required")
	}

	hash := tokens.SHA256Base64URL(p.Code)
	code, err := s.d.AuthCodes.GetByHash(ctx, hash)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errInvalidGrant("invalid authorization code")
		}
		return nil, internalErr(err)
	}

	now := s.d.Now().UTC()
	if code.Expired(now) {
		if derr := s.d.AuthCodes.Delete(ctx, hash); derr != nil {
			log.Warn("delete expired code failed", logger.Err(derr))
		}
		return nil, errInvalidGrant("authorization code expired")
	}
	if code.Used() {
		return nil, s.replay(ctx, code)
	}

	app, err := s.clientApp(ctx, p.ClientID)
	if err != nil {
		return nil, err
	}
	if app.ID != code.ApplicationID {
		log.Warn("code issued to another client")
		return nil, errInvalidGrant("invalid authorization code")
	}
	if p.RedirectURI != code.RedirectURI {
		log.Warn("redirect_uri mismatch")
		return nil, errInvalidGrant("redirect_uri does not match the authorization request")
	}
	if app.HasSecret() {
		if p.ClientSecret == "" || !secret.Compare(app.ClientSecretHash, p.ClientSecret) {
			audit.Log(ctx, audit.EventClientAuthFailed, logger.ClientID(app.ClientID), logger.GrantType(GrantAuthorizationCode))
			return nil, errInvalidClient()
		}
	}
	if code.CodeChallenge != "" {
		if p.CodeVerifier == "" {
			return nil, errInvalidGrant("code_verifier is required")
		}
		if !pkce.Verify(p.CodeVerifier, code.CodeChallenge, code.CodeChallengeMethod) {
			log.Warn("PKCE verification failed")
			return nil, errInvalidGrant("PKCE verification failed")
		}
	}

	if err := s.d.AuthCodes.MarkUsed(ctx, hash, now); err != nil {
		if repository.IsAlreadyUsed(err) {
			return nil, s.replay(ctx, code)
		}
		if repository.IsNotFound(err) {
			return nil, errInvalidGrant("invalid authorization code")
		}
		return nil, internalErr(err)
	}

	user, err := s.d.Users.GetByID(ctx, code.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errInvalidGrant("user no longer exists")
		}
		return nil, internalErr(err)
	}

	var scopeT *TenantScope
	if code.TenantID != "" {
		scopeT = &TenantScope{TenantID: code.TenantID, TenantSubdomain: code.TenantSubdomain}
	}
	resp, err = s.issuer.GenerateTokens(ctx, issueInput{
		User:      user,
		App:       app,
		Scope:     code.Scope,
		Nonce:     code.Nonce,
		Tenant:    scopeT,
		UserAgent: p.UserAgent,
		IPAddress: p.IPAddress,
	})
	if err != nil {
		return nil, err
	}
	log.Info("authorization_code exchanged", logger.UserID(user.ID), logger.TenantID(code.TenantID))
	return resp, nil
}

// replay runs the reuse defense: every session of the user for the client
// is revoked and the code is removed. The request still fails.
func (s *tokenService) replay(ctx context.Context, code *repository.AuthorizationCode) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.replay"))
	s.d.Metrics.CodeReplay()
	audit.Log(ctx, audit.EventCodeReplay, logger.UserID(code.UserID), logger.ApplicationID(code.ApplicationID))

	if _, err := s.sessions.revokeAll(ctx, code.UserID, code.ApplicationID, "replay"); err != nil {
		log.Error("replay defense revocation failed", logger.Err(err))
	}
	if err := s.d.AuthCodes.Delete(ctx, code.CodeHash); err != nil {
		log.Warn("delete replayed code failed", logger.Err(err))
	}
	return &Error{Kind: KindUnauthorized, Code: CodeInvalidGrant, Reason: "authorization code already used", Err: ErrCodeReplay}
}

// clientApp resolves an active application by client_id.
func (s *tokenService) clientApp(ctx context.Context, clientID string) (*repository.Application, error) {
	app, err := s.d.Applications.GetByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errInvalidClient()
		}
		return nil, internalErr(err)
	}
	if !app.IsActive {
		return nil, errInvalidClient()
	}
	return app, nil
}

func (s *tokenService) ExchangeRefreshToken(ctx context.Context, p TokenParams) (resp *TokenResponse, err error) {
	defer s.observe(GrantRefreshToken, time.Now(), &err)
	defer func() {
		if err != nil {
			s.d.Metrics.RefreshRotation(metrics.ResultFailure)
		} else {
			s.d.Metrics.RefreshRotation(metrics.ResultSuccess)
		}
	}()
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.refresh"),
		logger.ClientID(p.ClientID))

	if p.RefreshToken == "" || p.ClientID == "" {
		return nil, badRequest(CodeInvalidRequest, "refresh_token and client_id are required")
	}

	// Signature first: a forged or expired token never reaches storage.
	var rc claims.Refresh
	if err := s.d.Keys.Verify(ctx, p.RefreshToken, s.d.Issuer, &rc); err != nil {
		return nil, errInvalidGrant("invalid refresh token")
	}
	if rc.TokenType != claims.TypeRefresh || rc.SessionID == "" {
		return nil, errInvalidGrant("invalid refresh token")
	}
	if claims.FirstAudience(rc.RegisteredClaims) != p.ClientID {
		audit.Log(ctx, audit.EventRefreshRejected, logger.ClientID(p.ClientID), logger.Reason("audience mismatch"))
		return nil, errInvalidGrant("invalid refresh token")
	}

	app, err := s.clientApp(ctx, p.ClientID)
	if err != nil {
		return nil, err
	}
	if p.ClientSecret != "" && app.HasSecret() && !secret.Compare(app.ClientSecretHash, p.ClientSecret) {
		audit.Log(ctx, audit.EventClientAuthFailed, logger.ClientID(app.ClientID), logger.GrantType(GrantRefreshToken))
		return nil, errInvalidClient()
	}

	sess, err := s.d.RefreshSessions.Get(ctx, rc.SessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errInvalidGrant("invalid refresh token")
		}
		return nil, internalErr(err)
	}
	now := s.d.Now().UTC()
	if !sess.Usable(now) || sess.ApplicationID != app.ID || sess.UserID != rc.Subject {
		audit.Log(ctx, audit.EventRefreshRejected, logger.SessionID(sess.ID), logger.UserID(sess.UserID),
			logger.Bool("revoked", sess.Revoked))
		return nil, errInvalidGrant("refresh session is revoked or expired")
	}

	scope := sess.Scope
	if p.Scope != "" {
		if !validation.ValidScope(p.Scope) {
			return nil, badRequest(CodeInvalidScope, "malformed scope")
		}
		scope, err = narrowScope(sess.Scope, p.Scope)
		if err != nil {
			return nil, err
		}
	}

	user, err := s.d.Users.GetByID(ctx, sess.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errInvalidGrant("user no longer exists")
		}
		return nil, internalErr(err)
	}

	var scopeT *TenantScope
	if sess.TenantID != "" {
		scopeT = &TenantScope{TenantID: sess.TenantID, TenantSubdomain: sess.TenantSubdomain}
	}
	// The old session is revoked in the same store write that creates the
	// new one; only one concurrent caller can win it.
	resp, err = s.issuer.GenerateTokens(ctx, issueInput{
		User:        user,
		App:         app,
		Scope:       scope,
		Tenant:      scopeT,
		UserAgent:   p.UserAgent,
		IPAddress:   p.IPAddress,
		RotatedFrom: sess.ID,
	})
	if errors.Is(err, errRotationLost) {
		audit.Log(ctx, audit.EventRefreshRejected, logger.SessionID(sess.ID), logger.Reason("lost rotation race"))
		return nil, errInvalidGrant("refresh session is revoked or expired")
	}
	if err != nil {
		return nil, err
	}
	s.d.Metrics.Revoked("rotation", 1)
	log.Info("refresh session rotated", logger.SessionID(sess.ID), logger.UserID(user.ID))
	return resp, nil
}

// narrowScope returns requested if it is a subset of granted.
func narrowScope(granted, requested string) (string, error) {
	have := map[string]struct{}{}
	for _, s := range claims.ParseScope(granted) {
		have[s] = struct{}{}
	}
	want := claims.ParseScope(requested)
	for _, s := range want {
		if _, ok := have[s]; !ok {
			return "", badRequest(CodeInvalidScope, "requested scope exceeds the original grant")
		}
	}
	return claims.Normalize(requested), nil
}
