package oauth

import (
	"context"
	"sort"
	"strings"

	"github.com/dropDatabas3/authvital/internal/claims"
	"github.com/dropDatabas3/authvital/internal/domain/repository"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

// IntrospectService implements RFC 7662 over the server's own JWTs.
type IntrospectService interface {
	// Introspect never fails: any problem yields {active:false}.
	Introspect(ctx context.Context, token, hint string) *IntrospectResult
}

type introspectService struct {
	d Deps
}

func newIntrospectService(d Deps) *introspectService { return &introspectService{d: d} }

func inactive() *IntrospectResult { return &IntrospectResult{Active: false} }

func (s *introspectService) Introspect(ctx context.Context, token, hint string) *IntrospectResult {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.introspect"))

	token = strings.TrimSpace(token)
	if token == "" {
		return inactive()
	}

	var env claims.Envelope
	if err := s.d.Keys.Verify(ctx, token, s.d.Issuer, &env); err != nil {
		log.Debug("token did not verify")
		return inactive()
	}

	res := &IntrospectResult{
		Active:          true,
		TokenType:       env.TokenType,
		Scope:           env.Scope,
		ClientID:        claims.FirstAudience(env.RegisteredClaims),
		Sub:             env.Subject,
		Aud:             claims.FirstAudience(env.RegisteredClaims),
		Iss:             env.Issuer,
		Jti:             env.ID,
		TenantID:        env.TenantID,
		TenantSubdomain: env.TenantSubdomain,
	}
	if env.ExpiresAt != nil {
		res.Exp = env.ExpiresAt.Unix()
	}
	if env.IssuedAt != nil {
		res.Iat = env.IssuedAt.Unix()
	}

	switch env.TokenType {
	case claims.TypeM2M:
		app, err := s.d.Applications.GetByClientID(ctx, env.ClientID)
		if err != nil || !app.IsActive {
			return inactive()
		}
		res.ClientID = env.ClientID
		res.IsMachine = true
		return res
	case claims.TypeRefresh:
		sess, err := s.d.RefreshSessions.Get(ctx, env.SessionID)
		if err != nil || !sess.Usable(s.d.Now().UTC()) {
			return inactive()
		}
	case claims.TypeAccess:
	default:
		// ID tokens carry no token_type and are not bearer credentials.
		return inactive()
	}

	user, err := s.d.Users.GetByID(ctx, env.Subject)
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Warn("introspect user lookup failed", logger.Err(err))
		}
		return inactive()
	}
	res.Email = user.Email
	res.EmailVerified = user.EmailVerified
	res.GivenName = user.GivenName
	res.FamilyName = user.FamilyName
	res.IsAnonymous = user.IsAnonymous
	res.IsMachine = user.IsMachine

	tenants, err := tenantRoles(ctx, s.d.Memberships, user.ID)
	if err != nil {
		log.Warn("introspect membership lookup failed", logger.Err(err))
		return inactive()
	}
	res.Tenants = tenants
	return res
}

// tenantRoles lists the user's active memberships as tenant/role pairs.
func tenantRoles(ctx context.Context, repo repository.MembershipRepository, userID string) ([]TenantRoles, error) {
	ms, err := repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]TenantRoles, 0, len(ms))
	for _, m := range ms {
		roles := make([]string, 0, len(m.Roles))
		for _, r := range m.Roles {
			roles = append(roles, r.Slug)
		}
		sort.Strings(roles)
		out = append(out, TenantRoles{
			TenantID:   m.TenantID,
			TenantSlug: m.Tenant.Slug,
			TenantName: m.Tenant.Name,
			Roles:      roles,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantSlug < out[j].TenantSlug })
	return out, nil
}
