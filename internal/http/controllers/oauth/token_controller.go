package oauth

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/authvital/internal/http/errors"
	mw "github.com/dropDatabas3/authvital/internal/http/middlewares"
	"github.com/dropDatabas3/authvital/internal/observability/logger"

	svc "github.com/dropDatabas3/authvital/internal/http/services/oauth"
)

// TokenController handles POST /oauth/token.
type TokenController struct {
	service svc.TokenService
}

func NewTokenController(s svc.TokenService) *TokenController {
	return &TokenController{service: s}
}

// Token implements the authorization_code, refresh_token and
// client_credentials grants. Accepts form (RFC 6749) or JSON bodies.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requirePost(w, r) {
		return
	}

	q, err := readParams(w, r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	grant := strings.TrimSpace(q.Get("grant_type"))
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"), logger.GrantType(grant))

	clientID, secret := clientCredentials(r, q)
	resp, err := c.service.Token(ctx, svc.TokenParams{
		GrantType:    grant,
		ClientID:     clientID,
		ClientSecret: secret,
		Code:         q.Get("code"),
		RedirectURI:  q.Get("redirect_uri"),
		CodeVerifier: q.Get("code_verifier"),
		RefreshToken: q.Get("refresh_token"),
		Scope:        q.Get("scope"),
		UserAgent:    r.UserAgent(),
		IPAddress:    mw.ClientIP(r),
	})
	if err != nil {
		log.Debug("token request rejected", logger.ClientID(clientID), logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	writeNoStoreJSON(w, resp)
}
