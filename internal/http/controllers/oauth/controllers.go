// Package oauth contains the HTTP adapters of the OAuth engine. Controllers
// parse form or JSON input, call one service and map the result.
package oauth

import (
	"github.com/dropDatabas3/authvital/internal/redirecttoken"

	svc "github.com/dropDatabas3/authvital/internal/http/services/oauth"
)

// Controllers groups the OAuth controllers.
type Controllers struct {
	Authorize  *AuthorizeController
	Token      *TokenController
	Introspect *IntrospectController
	Revoke     *RevokeController
	Sessions   *SessionController
	Redirect   *RedirectController
}

// NewControllers builds every controller over s. rt may be nil, in which
// case the redirect-token endpoints answer 404.
func NewControllers(s svc.Services, rt *redirecttoken.Service) *Controllers {
	return &Controllers{
		Authorize:  NewAuthorizeController(s.Authorize),
		Token:      NewTokenController(s.Token),
		Introspect: NewIntrospectController(s.Introspect),
		Revoke:     NewRevokeController(s.Revoke),
		Sessions:   NewSessionController(s.Sessions),
		Redirect:   NewRedirectController(s.Redirect, rt),
	}
}
