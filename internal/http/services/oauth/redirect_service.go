package oauth

import (
	"context"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
)

// RedirectService checks a redirect_uri against a client's registered
// patterns without issuing anything.
type RedirectService interface {
	ValidateRedirectURI(ctx context.Context, clientID, redirectURI string) (RedirectCheck, error)
}

type redirectService struct {
	d Deps
}

func newRedirectService(d Deps) *redirectService { return &redirectService{d: d} }

func (s *redirectService) ValidateRedirectURI(ctx context.Context, clientID, redirectURI string) (RedirectCheck, error) {
	if clientID == "" || redirectURI == "" {
		return RedirectCheck{}, badRequest(CodeInvalidRequest, "client_id and redirect_uri are required")
	}
	app, err := s.d.Applications.GetByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return RedirectCheck{Valid: false, Reason: "unknown client"}, nil
		}
		return RedirectCheck{}, internalErr(err)
	}
	res := s.d.Validator.Validate(ctx, redirectURI, app.RedirectURIs)
	return RedirectCheck{
		Valid:          res.Valid,
		Reason:         res.Reason,
		MatchedPattern: res.MatchedPattern,
		Tenant:         res.ExtractedTenant,
	}, nil
}
