package middlewares

import "context"

type ctxKey int

const (
	ctxRequestIDKey ctxKey = iota
	ctxPrincipalKey
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, rid)
}

// GetRequestID retorna el request id del contexto o "".
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestIDKey).(string)
	return v
}

// Principal es el usuario autenticado por un access token.
type Principal struct {
	UserID          string
	ClientID        string
	Scope           string
	TenantID        string
	TenantSubdomain string
}

// WithPrincipal adjunta p al contexto.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

// GetPrincipal retorna el principal del contexto o nil.
func GetPrincipal(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxPrincipalKey).(*Principal)
	return p
}
