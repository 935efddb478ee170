// Package audit registra eventos de seguridad como logs estructurados con
// logger "audit", separables del resto por nombre.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

// Eventos emitidos por el motor OAuth.
const (
	EventCodeReplay        = "oauth.code_replay"
	EventSessionRevoked    = "oauth.session_revoked"
	EventSessionsRevoked   = "oauth.sessions_revoked_all"
	EventClientAuthFailed  = "oauth.client_auth_failed"
	EventRefreshRejected   = "oauth.refresh_rejected"
	EventM2MTokenIssued    = "oauth.m2m_token_issued"
	EventRedirectRejected  = "oauth.redirect_rejected"
)

// Log escribe el evento. Los eventos de ataque van en Warn, el resto en Info.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	l := logger.From(ctx).Named("audit").With(zap.String("event", event))
	switch event {
	case EventCodeReplay, EventClientAuthFailed, EventRefreshRejected, EventRedirectRejected:
		l.Warn("audit", fields...)
	default:
		l.Info("audit", fields...)
	}
}
