package oauth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	httperrors "github.com/dropDatabas3/authvital/internal/http/errors"
	mw "github.com/dropDatabas3/authvital/internal/http/middlewares"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
	"github.com/dropDatabas3/authvital/internal/redirecttoken"

	svc "github.com/dropDatabas3/authvital/internal/http/services/oauth"
)

var errRedirectToken = &httperrors.AppError{
	Code:       svc.CodeInvalidGrant,
	Message:    "redirect token is invalid or expired",
	HTTPStatus: http.StatusUnauthorized,
}

// RedirectController validates redirect URIs and carries a signed-in user
// across domains with single-use redirect tokens.
type RedirectController struct {
	service svc.RedirectService
	tokens  *redirecttoken.Service
}

func NewRedirectController(s svc.RedirectService, rt *redirecttoken.Service) *RedirectController {
	return &RedirectController{service: s, tokens: rt}
}

// Validate handles GET /oauth/validate-redirect?client_id=&redirect_uri=.
func (c *RedirectController) Validate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := c.service.ValidateRedirectURI(r.Context(), strings.TrimSpace(q.Get("client_id")), strings.TrimSpace(q.Get("redirect_uri")))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, res)
}

type mintResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// Mint handles POST /oauth/redirect-token for the bearer principal. The
// target redirect_uri must be valid for client_id.
func (c *RedirectController) Mint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if c.tokens == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}
	p := mw.GetPrincipal(ctx)
	if p == nil {
		httperrors.WriteError(w, httperrors.ErrMissingToken)
		return
	}
	q, err := readParams(w, r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	clientID := strings.TrimSpace(q.Get("client_id"))
	redirectURI := strings.TrimSpace(q.Get("redirect_uri"))

	check, err := c.service.ValidateRedirectURI(ctx, clientID, redirectURI)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if !check.Valid {
		httperrors.WriteError(w, httperrors.New(http.StatusBadRequest, svc.CodeInvalidRequest, "redirect_uri rejected: "+check.Reason))
		return
	}

	tenantID := strings.TrimSpace(q.Get("tenant_id"))
	if tenantID == "" {
		tenantID = p.TenantID
	}
	tok, err := c.tokens.Issue(ctx, redirecttoken.Payload{
		UserID:      p.UserID,
		ClientID:    clientID,
		TenantID:    tenantID,
		RedirectURI: redirectURI,
	})
	if err != nil {
		logger.From(ctx).Error("redirect token mint failed", logger.Op("oauth.redirect_token.mint"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}
	writeNoStoreJSON(w, mintResponse{Token: tok, ExpiresIn: int64(c.tokens.TTL() / time.Second)})
}

// Exchange handles POST /oauth/redirect-token/exchange. A token is good
// for one call; client_id, when sent, must match the minting client.
func (c *RedirectController) Exchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if c.tokens == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}
	q, err := readParams(w, r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	payload, err := c.tokens.Consume(ctx, strings.TrimSpace(q.Get("token")))
	if errors.Is(err, redirecttoken.ErrInvalid) {
		httperrors.WriteError(w, errRedirectToken)
		return
	}
	if err != nil {
		logger.From(ctx).Error("redirect token exchange failed", logger.Op("oauth.redirect_token.exchange"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}
	if id := strings.TrimSpace(q.Get("client_id")); id != "" && id != payload.ClientID {
		httperrors.WriteError(w, errRedirectToken)
		return
	}
	writeNoStoreJSON(w, payload)
}
