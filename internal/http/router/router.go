// Package router arma la tabla de rutas HTTP sobre chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	healthctrl "github.com/dropDatabas3/authvital/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/authvital/internal/http/controllers/oauth"
	oidcctrl "github.com/dropDatabas3/authvital/internal/http/controllers/oidc"
	httperrors "github.com/dropDatabas3/authvital/internal/http/errors"
	mw "github.com/dropDatabas3/authvital/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
	"github.com/dropDatabas3/authvital/internal/metrics"
	"github.com/dropDatabas3/authvital/internal/rate"
)

// Deps contiene todo lo que necesitan las rutas.
type Deps struct {
	OAuth  *oauthctrl.Controllers
	OIDC   *oidcctrl.Controllers
	Health *healthctrl.HealthController

	// Keys e Issuer alimentan RequireBearer.
	Keys   jwtx.KeyService
	Issuer string

	// Limiter es opcional: nil desactiva el rate limit.
	Limiter rate.Limiter
	Metrics *metrics.Recorder
}

// New retorna el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(d.Metrics),
		mw.WithSecurityHeaders(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
		r.Get("/readyz", d.Health.Readyz)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	bearer := mw.RequireBearer(d.Keys, d.Issuer)
	if d.OAuth != nil {
		RegisterOAuthRoutes(r, d.OAuth, bearer, d.Limiter)
	}
	if d.OIDC != nil {
		RegisterOIDCRoutes(r, d.OIDC, bearer)
	}
	return r
}
