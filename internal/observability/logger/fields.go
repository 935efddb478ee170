package logger

import (
	"go.uber.org/zap"
)

// ---- HTTP ----

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// ---- negocio ----

func TenantID(v string) zap.Field   { return zap.String("tenant_id", v) }
func TenantSlug(v string) zap.Field { return zap.String("tenant_slug", v) }
func UserID(v string) zap.Field     { return zap.String("user_id", v) }

// ClientID es el client_id público de la aplicación OAuth.
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// ApplicationID es el id interno (PK) de la aplicación.
func ApplicationID(v string) zap.Field { return zap.String("application_id", v) }

// SessionID es el sid de una RefreshSession. Nunca loguear el refresh token.
func SessionID(v string) zap.Field { return zap.String("session_id", v) }
func GrantType(v string) zap.Field { return zap.String("grant_type", v) }
func Scope(v string) zap.Field     { return zap.String("scope", v) }

// ---- sistema ----

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }

// Layer: controller, service, repository.
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Err(err error) zap.Field  { return zap.Error(err) }
func Count(v int) zap.Field    { return zap.Int("count", v) }
func Reason(v string) zap.Field {
	return zap.String("reason", v)
}

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
