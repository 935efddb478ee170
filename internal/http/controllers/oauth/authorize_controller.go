package oauth

import (
	"net/http"
	"net/url"

	httperrors "github.com/dropDatabas3/authvital/internal/http/errors"
	mw "github.com/dropDatabas3/authvital/internal/http/middlewares"
	"github.com/dropDatabas3/authvital/internal/observability/logger"

	svc "github.com/dropDatabas3/authvital/internal/http/services/oauth"
)

// AuthorizeController handles /oauth/authorize for an authenticated user.
type AuthorizeController struct {
	service svc.AuthorizeService
}

func NewAuthorizeController(s svc.AuthorizeService) *AuthorizeController {
	return &AuthorizeController{service: s}
}

// Authorize issues a code. GET redirects to the client with code and state;
// POST answers JSON so a first-party SPA can follow the redirect itself.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.authorize"))

	p := mw.GetPrincipal(ctx)
	if p == nil {
		httperrors.WriteError(w, httperrors.ErrMissingToken)
		return
	}

	var q url.Values
	switch r.Method {
	case http.MethodGet:
		q = r.URL.Query()
	case http.MethodPost:
		var err error
		if q, err = readParams(w, r); err != nil {
			httperrors.WriteError(w, err)
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	res, err := c.service.Authorize(ctx, p.UserID, svc.AuthorizeParams{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseType:        q.Get("response_type"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		Nonce:               q.Get("nonce"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		TenantID:            q.Get("tenant_id"),
		TenantSubdomain:     q.Get("tenant_subdomain"),
	})
	if err != nil {
		log.Debug("authorize rejected", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}

	if r.Method == http.MethodGet {
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return
	}
	writeNoStoreJSON(w, res)
}
