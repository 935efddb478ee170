package oauth

import (
	"context"
	"time"

	"github.com/dropDatabas3/authvital/internal/audit"
	"github.com/dropDatabas3/authvital/internal/claims"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
	"github.com/dropDatabas3/authvital/internal/security/secret"
	"github.com/dropDatabas3/authvital/internal/validation"
)

// ExchangeClientCredentials issues a user-less access token. There is no
// refresh token: the client re-authenticates with its secret on expiry.
func (s *tokenService) ExchangeClientCredentials(ctx context.Context, p TokenParams) (resp *TokenResponse, err error) {
	defer s.observe(GrantClientCredentials, time.Now(), &err)
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.client_credentials"),
		logger.ClientID(p.ClientID))

	if p.ClientID == "" || p.ClientSecret == "" {
		return nil, badRequest(CodeInvalidRequest, "client_id and client_secret are required")
	}

	app, err := s.clientApp(ctx, p.ClientID)
	if err != nil {
		return nil, err
	}
	if !app.HasSecret() {
		log.Warn("client_credentials for application without secret")
		return nil, unauthorized(CodeUnauthorizedClient,
			"application has no client secret configured; generate one before using client_credentials")
	}
	if !secret.Compare(app.ClientSecretHash, p.ClientSecret) {
		audit.Log(ctx, audit.EventClientAuthFailed, logger.ClientID(app.ClientID), logger.GrantType(GrantClientCredentials))
		return nil, errInvalidClient()
	}

	scope := claims.Normalize(p.Scope)
	if !validation.ValidScope(scope) {
		return nil, badRequest(CodeInvalidScope, "malformed scope")
	}

	tok, ttl, err := s.issuer.signM2M(ctx, app, scope)
	if err != nil {
		log.Error("sign m2m token failed", logger.Err(err))
		return nil, internalErr(err)
	}

	audit.Log(ctx, audit.EventM2MTokenIssued, logger.ClientID(app.ClientID), logger.Scope(scope))
	return &TokenResponse{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		Scope:       scope,
	}, nil
}
