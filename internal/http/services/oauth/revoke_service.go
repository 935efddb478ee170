package oauth

import (
	"context"
	"strings"

	"github.com/dropDatabas3/authvital/internal/claims"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

// RevokeService implements RFC 7009 token revocation.
type RevokeService interface {
	// RevokeToken revokes the refresh session behind a refresh token.
	// Access tokens are stateless: revoking one is a silent no-op, as is an
	// unknown or invalid token. clientID, when set, must be the token's audience.
	RevokeToken(ctx context.Context, token, hint, clientID string) error
}

type revokeService struct {
	d        Deps
	sessions *sessionService
}

func newRevokeService(d Deps, sessions *sessionService) *revokeService {
	return &revokeService{d: d, sessions: sessions}
}

func (s *revokeService) RevokeToken(ctx context.Context, token, hint, clientID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.revoke"), logger.ClientID(clientID))

	token = strings.TrimSpace(token)
	if token == "" {
		return badRequest(CodeInvalidRequest, "token is required")
	}
	if hint == HintAccessToken {
		return nil
	}

	var rc claims.Refresh
	if err := s.d.Keys.Verify(ctx, token, s.d.Issuer, &rc); err != nil {
		log.Debug("revoke: token did not verify")
		return nil
	}
	if rc.TokenType != claims.TypeRefresh || rc.SessionID == "" {
		return nil
	}
	if clientID != "" && claims.FirstAudience(rc.RegisteredClaims) != clientID {
		log.Warn("revoke: token belongs to another client")
		return nil
	}

	res, err := s.sessions.RevokeSession(ctx, rc.SessionID)
	if err != nil {
		return err
	}
	log.Info("refresh token revoked", logger.SessionID(rc.SessionID), logger.String("result", res.Message))
	return nil
}
