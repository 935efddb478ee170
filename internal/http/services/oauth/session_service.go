package oauth

import (
	"context"

	"github.com/dropDatabas3/authvital/internal/audit"
	"github.com/dropDatabas3/authvital/internal/domain/repository"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

// SessionService manages refresh sessions ("token ghosting" records).
// Revocation is permanent; sessions are never deleted.
type SessionService interface {
	// RevokeSession revokes one session by id.
	RevokeSession(ctx context.Context, sessionID string) (RevokeSessionResult, error)
	// RevokeUserSession revokes sessionID only if it belongs to userID.
	RevokeUserSession(ctx context.Context, userID, sessionID string) (RevokeSessionResult, error)
	// RevokeAllUserSessions revokes every active session of userID,
	// optionally limited to one application.
	RevokeAllUserSessions(ctx context.Context, userID, applicationID string) (RevokeAllResult, error)
	// GetUserSessions lists active sessions without tokens.
	GetUserSessions(ctx context.Context, userID, applicationID string) ([]SessionInfo, error)
	// ApplicationID resolves a client_id to the application id. Empty in, empty out.
	ApplicationID(ctx context.Context, clientID string) (string, error)
}

type sessionService struct {
	d Deps
}

func newSessionService(d Deps) *sessionService { return &sessionService{d: d} }

func (s *sessionService) RevokeSession(ctx context.Context, sessionID string) (RevokeSessionResult, error) {
	return s.revoke(ctx, sessionID, "revoke")
}

func (s *sessionService) RevokeUserSession(ctx context.Context, userID, sessionID string) (RevokeSessionResult, error) {
	sess, err := s.d.RefreshSessions.Get(ctx, sessionID)
	if repository.IsNotFound(err) || (err == nil && sess.UserID != userID) {
		return RevokeSessionResult{Success: false, Message: "session not found"}, nil
	}
	if err != nil {
		return RevokeSessionResult{}, internalErr(err)
	}
	return s.revoke(ctx, sessionID, "logout")
}

func (s *sessionService) revoke(ctx context.Context, sessionID, reason string) (RevokeSessionResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.sessions.revoke"), logger.SessionID(sessionID))

	ok, err := s.d.RefreshSessions.Revoke(ctx, sessionID, s.d.Now().UTC())
	if repository.IsNotFound(err) {
		return RevokeSessionResult{Success: false, Message: "session not found"}, nil
	}
	if err != nil {
		log.Error("revoke session failed", logger.Err(err))
		return RevokeSessionResult{}, internalErr(err)
	}
	if !ok {
		return RevokeSessionResult{Success: true, Message: "session already revoked"}, nil
	}
	s.d.Metrics.Revoked(reason, 1)
	audit.Log(ctx, audit.EventSessionRevoked, logger.SessionID(sessionID), logger.Reason(reason))
	return RevokeSessionResult{Success: true, Message: "session revoked"}, nil
}

func (s *sessionService) RevokeAllUserSessions(ctx context.Context, userID, applicationID string) (RevokeAllResult, error) {
	n, err := s.revokeAll(ctx, userID, applicationID, "logout_all")
	if err != nil {
		return RevokeAllResult{}, internalErr(err)
	}
	return RevokeAllResult{Success: true, Count: n}, nil
}

// revokeAll is shared with replay defense.
func (s *sessionService) revokeAll(ctx context.Context, userID, applicationID, reason string) (int, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.sessions.revoke_all"),
		logger.UserID(userID), logger.ApplicationID(applicationID))

	n, err := s.d.RefreshSessions.RevokeAllByUser(ctx, userID, applicationID, s.d.Now().UTC())
	if err != nil {
		log.Error("bulk revoke failed", logger.Err(err))
		return 0, err
	}
	s.d.Metrics.Revoked(reason, n)
	audit.Log(ctx, audit.EventSessionsRevoked, logger.UserID(userID), logger.ApplicationID(applicationID),
		logger.Count(n), logger.Reason(reason))
	return n, nil
}

func (s *sessionService) GetUserSessions(ctx context.Context, userID, applicationID string) ([]SessionInfo, error) {
	list, err := s.d.RefreshSessions.ListActiveByUser(ctx, userID, applicationID, s.d.Now().UTC())
	if err != nil {
		return nil, internalErr(err)
	}
	out := make([]SessionInfo, 0, len(list))
	for _, r := range list {
		out = append(out, SessionInfo{
			ID:              r.ID,
			ApplicationID:   r.ApplicationID,
			Scope:           r.Scope,
			TenantID:        r.TenantID,
			TenantSubdomain: r.TenantSubdomain,
			UserAgent:       r.UserAgent,
			IPAddress:       r.IPAddress,
			CreatedAt:       r.CreatedAt,
			ExpiresAt:       r.ExpiresAt,
		})
	}
	return out, nil
}

func (s *sessionService) ApplicationID(ctx context.Context, clientID string) (string, error) {
	if clientID == "" {
		return "", nil
	}
	app, err := s.d.Applications.GetByClientID(ctx, clientID)
	if repository.IsNotFound(err) {
		return "", badRequest(CodeInvalidRequest, "unknown client_id")
	}
	if err != nil {
		return "", internalErr(err)
	}
	return app.ID, nil
}
