package oauth

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/authvital/internal/http/errors"

	svc "github.com/dropDatabas3/authvital/internal/http/services/oauth"
)

// IntrospectController handles POST /oauth/introspect (RFC 7662).
type IntrospectController struct {
	service svc.IntrospectService
}

func NewIntrospectController(s svc.IntrospectService) *IntrospectController {
	return &IntrospectController{service: s}
}

// Introspect always answers 200; a bad or missing token is {active:false}.
func (c *IntrospectController) Introspect(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	q, err := readParams(w, r)
	if err != nil {
		writeNoStoreJSON(w, &svc.IntrospectResult{Active: false})
		return
	}
	token := strings.TrimSpace(q.Get("token"))
	if token == "" {
		writeNoStoreJSON(w, &svc.IntrospectResult{Active: false})
		return
	}
	res := c.service.Introspect(r.Context(), token, q.Get("token_type_hint"))
	if res == nil {
		httperrors.WriteError(w, httperrors.ErrInternal)
		return
	}
	writeNoStoreJSON(w, res)
}
