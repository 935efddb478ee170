package oauth

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/authvital/internal/http/errors"
	"github.com/dropDatabas3/authvital/internal/observability/logger"

	svc "github.com/dropDatabas3/authvital/internal/http/services/oauth"
)

// RevokeController handles POST /oauth/revoke (RFC 7009).
type RevokeController struct {
	service svc.RevokeService
}

func NewRevokeController(s svc.RevokeService) *RevokeController {
	return &RevokeController{service: s}
}

// Revoke answers 200 with an empty body for unknown or invalid tokens too.
func (c *RevokeController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !requirePost(w, r) {
		return
	}
	q, err := readParams(w, r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	clientID, _ := clientCredentials(r, q)
	err = c.service.RevokeToken(ctx, strings.TrimSpace(q.Get("token")), q.Get("token_type_hint"), clientID)
	if err != nil {
		logger.From(ctx).Debug("revoke rejected", logger.Op("oauth.revoke"), logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}
