package router

import (
	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/authvital/internal/http/controllers/oauth"
	mw "github.com/dropDatabas3/authvital/internal/http/middlewares"
	"github.com/dropDatabas3/authvital/internal/rate"
)

// RegisterOAuthRoutes registra /oauth/*. token e introspect llevan rate
// limit por ip|path|client_id cuando hay limiter.
func RegisterOAuthRoutes(r chi.Router, c *ctrl.Controllers, bearer mw.Middleware, limiter rate.Limiter) {
	limited := mw.WithRateLimit(mw.RateLimitConfig{Limiter: limiter, KeyFunc: mw.DefaultRateKey})

	r.Route("/oauth", func(r chi.Router) {
		r.Use(mw.WithNoStore())

		// Públicos (autenticación de cliente dentro del service).
		r.With(limited).Post("/token", c.Token.Token)
		r.With(limited).Post("/introspect", c.Introspect.Introspect)
		r.Post("/revoke", c.Revoke.Revoke)
		r.Get("/validate-redirect", c.Redirect.Validate)
		r.With(limited).Post("/redirect-token/exchange", c.Redirect.Exchange)

		// Requieren access token de usuario.
		r.Group(func(r chi.Router) {
			r.Use(bearer)
			r.Get("/authorize", c.Authorize.Authorize)
			r.Post("/authorize", c.Authorize.Authorize)
			r.Post("/redirect-token", c.Redirect.Mint)
			r.Get("/sessions", c.Sessions.List)
			r.Post("/sessions/revoke-all", c.Sessions.RevokeAll)
			r.Delete("/sessions/{id}", c.Sessions.Revoke)
		})
	})
}
