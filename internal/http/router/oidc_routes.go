package router

import (
	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/authvital/internal/http/controllers/oidc"
	mw "github.com/dropDatabas3/authvital/internal/http/middlewares"
)

// RegisterOIDCRoutes registra discovery, JWKS (públicos, cacheables) y /userinfo.
func RegisterOIDCRoutes(r chi.Router, c *ctrl.Controllers, bearer mw.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.WithCacheControl("public, max-age=300"))
		r.Get("/.well-known/openid-configuration", c.Discovery.OpenIDConfiguration)
		r.Get("/.well-known/jwks.json", c.Discovery.JWKS)
	})

	r.With(bearer).Get("/userinfo", c.UserInfo.UserInfo)
	r.With(bearer).Post("/userinfo", c.UserInfo.UserInfo)
}
