package oauth

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/authvital/internal/http/errors"
	mw "github.com/dropDatabas3/authvital/internal/http/middlewares"
	"github.com/dropDatabas3/authvital/internal/observability/logger"

	svc "github.com/dropDatabas3/authvital/internal/http/services/oauth"
)

// SessionController exposes the caller's own refresh sessions.
// Every route requires a bearer principal.
type SessionController struct {
	service svc.SessionService
}

func NewSessionController(s svc.SessionService) *SessionController {
	return &SessionController{service: s}
}

type sessionList struct {
	Sessions []svc.SessionInfo `json:"sessions"`
}

// List handles GET /oauth/sessions[?client_id=].
func (c *SessionController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := mw.GetPrincipal(ctx)
	if p == nil {
		httperrors.WriteError(w, httperrors.ErrMissingToken)
		return
	}
	appID, err := c.service.ApplicationID(ctx, strings.TrimSpace(r.URL.Query().Get("client_id")))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	sessions, err := c.service.GetUserSessions(ctx, p.UserID, appID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if sessions == nil {
		sessions = []svc.SessionInfo{}
	}
	writeNoStoreJSON(w, sessionList{Sessions: sessions})
}

// Revoke handles DELETE /oauth/sessions/{id}. Sessions of other users
// answer 404 like missing ones.
func (c *SessionController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := mw.GetPrincipal(ctx)
	if p == nil {
		httperrors.WriteError(w, httperrors.ErrMissingToken)
		return
	}
	id := chi.URLParam(r, "id")
	res, err := c.service.RevokeUserSession(ctx, p.UserID, id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if !res.Success {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithMessage(res.Message))
		return
	}
	logger.From(ctx).Info("session revoked by owner", logger.Op("oauth.sessions.revoke"), logger.SessionID(id))
	writeNoStoreJSON(w, res)
}

// RevokeAll handles POST /oauth/sessions/revoke-all, optionally limited
// to one client_id.
func (c *SessionController) RevokeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := mw.GetPrincipal(ctx)
	if p == nil {
		httperrors.WriteError(w, httperrors.ErrMissingToken)
		return
	}
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if r.ContentLength > 0 {
		q, err := readParams(w, r)
		if err != nil {
			httperrors.WriteError(w, err)
			return
		}
		if v := strings.TrimSpace(q.Get("client_id")); v != "" {
			clientID = v
		}
	}
	appID, err := c.service.ApplicationID(ctx, clientID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	res, err := c.service.RevokeAllUserSessions(ctx, p.UserID, appID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	writeNoStoreJSON(w, res)
}
