package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/authvital/internal/claims"
	httperrors "github.com/dropDatabas3/authvital/internal/http/errors"
	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

// bearerToken extrae el token de "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(ah[7:])
	return tok, tok != ""
}

// RequireBearer exige un access token de usuario válido y adjunta el
// Principal al contexto. Refresh, M2M e ID tokens se rechazan.
func RequireBearer(keys jwtx.KeyService, issuer string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httperrors.WriteError(w, httperrors.ErrMissingToken)
				return
			}

			var c claims.Access
			if err := keys.Verify(r.Context(), raw, issuer, &c); err != nil {
				httperrors.WriteError(w, httperrors.ErrInvalidToken)
				return
			}
			if c.TokenType != claims.TypeAccess || c.Subject == "" {
				logger.From(r.Context()).Debug("bearer rejected", logger.Reason("token_type "+c.TokenType))
				httperrors.WriteError(w, httperrors.ErrInvalidToken)
				return
			}

			p := &Principal{
				UserID:          c.Subject,
				ClientID:        c.ClientID,
				Scope:           c.Scope,
				TenantID:        c.TenantID,
				TenantSubdomain: c.TenantSubdomain,
			}
			if p.ClientID == "" {
				p.ClientID = claims.FirstAudience(c.RegisteredClaims)
			}

			log := logger.From(r.Context()).With(logger.UserID(p.UserID))
			ctx := logger.ToContext(WithPrincipal(r.Context(), p), log)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope exige que el Principal tenga scope. Usar después de RequireBearer.
func RequireScope(scope string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				httperrors.WriteError(w, httperrors.ErrMissingToken)
				return
			}
			if !claims.HasScope(p.Scope, scope) {
				httperrors.WriteError(w, httperrors.ErrInsufficientScope.WithMessage("scope "+scope+" required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
