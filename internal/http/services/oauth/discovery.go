package oauth

import (
	"context"
	"strings"

	jose "github.com/go-jose/go-jose/v4"

	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
)

// DiscoveryDocument is the OpenID Provider metadata.
type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JwksURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// DiscoveryService serves the static metadata and the public keys.
type DiscoveryService interface {
	Document() DiscoveryDocument
	JWKS(ctx context.Context) (jose.JSONWebKeySet, error)
}

type discoveryService struct {
	d   Deps
	doc DiscoveryDocument
}

func newDiscoveryService(d Deps) *discoveryService {
	base := strings.TrimRight(d.Issuer, "/")
	return &discoveryService{d: d, doc: DiscoveryDocument{
		Issuer:                            d.Issuer,
		AuthorizationEndpoint:             base + "/oauth/authorize",
		TokenEndpoint:                     base + "/oauth/token",
		IntrospectionEndpoint:             base + "/oauth/introspect",
		RevocationEndpoint:                base + "/oauth/revoke",
		UserinfoEndpoint:                  base + "/userinfo",
		JwksURI:                           base + "/.well-known/jwks.json",
		ResponseTypesSupported:            []string{ResponseTypeCode},
		GrantTypesSupported:               []string{GrantAuthorizationCode, GrantRefreshToken, GrantClientCredentials},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{jwtx.Algorithm},
		ScopesSupported:                   []string{"openid", "profile", "email", "offline_access"},
		ClaimsSupported:                   []string{"sub", "iss", "aud", "exp", "iat", "email", "given_name", "family_name", "nonce", "tenant_id", "tenant_subdomain", "tenant_roles", "tenant_permissions", "app_roles", "license"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "client_secret_basic", "none"},
	}}
}

func (s *discoveryService) Document() DiscoveryDocument { return s.doc }

func (s *discoveryService) JWKS(ctx context.Context) (jose.JSONWebKeySet, error) {
	set, err := s.d.Keys.JWKS(ctx)
	if err != nil {
		return jose.JSONWebKeySet{}, internalErr(err)
	}
	return set, nil
}
