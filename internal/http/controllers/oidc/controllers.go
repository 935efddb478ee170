// Package oidc contiene los controllers OIDC: discovery, JWKS y userinfo.
package oidc

import (
	"net/http"

	httperrors "github.com/dropDatabas3/authvital/internal/http/errors"
	mw "github.com/dropDatabas3/authvital/internal/http/middlewares"
	"github.com/dropDatabas3/authvital/internal/observability/logger"

	svc "github.com/dropDatabas3/authvital/internal/http/services/oauth"
)

// Controllers agrupa los controllers OIDC.
type Controllers struct {
	Discovery *DiscoveryController
	UserInfo  *UserInfoController
}

// NewControllers crea el agregador sobre los services del motor.
func NewControllers(s svc.Services) *Controllers {
	return &Controllers{
		Discovery: &DiscoveryController{service: s.Discovery},
		UserInfo:  &UserInfoController{service: s.UserInfo},
	}
}

// DiscoveryController sirve los documentos públicos.
type DiscoveryController struct {
	service svc.DiscoveryService
}

// OpenIDConfiguration maneja GET /.well-known/openid-configuration.
func (c *DiscoveryController) OpenIDConfiguration(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, c.service.Document())
}

// JWKS maneja GET /.well-known/jwks.json.
func (c *DiscoveryController) JWKS(w http.ResponseWriter, r *http.Request) {
	set, err := c.service.JWKS(r.Context())
	if err != nil {
		logger.From(r.Context()).Error("jwks unavailable", logger.Op("oidc.jwks"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, set)
}

// UserInfoController maneja GET /userinfo. La ruta va detrás de RequireBearer.
type UserInfoController struct {
	service svc.UserInfoService
}

func (c *UserInfoController) UserInfo(w http.ResponseWriter, r *http.Request) {
	p := mw.GetPrincipal(r.Context())
	if p == nil {
		httperrors.WriteError(w, httperrors.ErrMissingToken)
		return
	}
	info, err := c.service.GetUserInfo(r.Context(), p.UserID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httperrors.WriteJSON(w, http.StatusOK, info)
}
