package oauth

import "time"

// Grant types accepted by the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// Token type hints (RFC 7009 §2.1, RFC 7662 §2.1).
const (
	HintAccessToken  = "access_token"
	HintRefreshToken = "refresh_token"
)

// ResponseTypeCode is the only response_type supported by authorize.
const ResponseTypeCode = "code"

// TenantScope narrows a token to exactly one tenant.
type TenantScope struct {
	TenantID        string `json:"tenant_id"`
	TenantSubdomain string `json:"tenant_subdomain"`
}

func (t *TenantScope) set() bool { return t != nil && t.TenantID != "" }

// AuthorizeParams are the authorization request parameters.
type AuthorizeParams struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	// Optional explicit tenant scope. Must agree with the tenant matched by
	// a {tenant} redirect pattern when both are present.
	TenantID        string
	TenantSubdomain string
}

// AuthorizeResult carries the issued code and where to send it.
type AuthorizeResult struct {
	Code        string       `json:"code"`
	State       string       `json:"state,omitempty"`
	RedirectURI string       `json:"redirect_uri"`
	RedirectURL string       `json:"redirect_url"`
	Tenant      *TenantScope `json:"tenant,omitempty"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// TokenParams is the union of every grant's parameters.
type TokenParams struct {
	GrantType    string
	ClientID     string
	ClientSecret string

	Code         string
	RedirectURI  string
	CodeVerifier string

	RefreshToken string
	Scope        string

	// Session metadata recorded on new refresh sessions.
	UserAgent string
	IPAddress string
}

// TokenResponse is the standard OAuth2 token response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// SessionInfo describes an active refresh session. It never carries tokens.
type SessionInfo struct {
	ID              string    `json:"id"`
	ApplicationID   string    `json:"application_id"`
	Scope           string    `json:"scope"`
	TenantID        string    `json:"tenant_id,omitempty"`
	TenantSubdomain string    `json:"tenant_subdomain,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
	IPAddress       string    `json:"ip_address,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// RevokeSessionResult is returned by RevokeSession.
type RevokeSessionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RevokeAllResult is returned by RevokeAllUserSessions.
type RevokeAllResult struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// TenantRoles is one tenant of the user with its role slugs.
type TenantRoles struct {
	TenantID   string   `json:"tenant_id"`
	TenantSlug string   `json:"tenant_slug"`
	TenantName string   `json:"tenant_name,omitempty"`
	Roles      []string `json:"roles"`
}

// IntrospectResult follows RFC 7662 plus account flags and tenant roles.
type IntrospectResult struct {
	Active    bool   `json:"active"`
	TokenType string `json:"token_type,omitempty"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Aud       string `json:"aud,omitempty"`
	Iss       string `json:"iss,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Jti       string `json:"jti,omitempty"`

	TenantID        string `json:"tenant_id,omitempty"`
	TenantSubdomain string `json:"tenant_subdomain,omitempty"`

	Email         string        `json:"email,omitempty"`
	EmailVerified bool          `json:"email_verified,omitempty"`
	GivenName     string        `json:"given_name,omitempty"`
	FamilyName    string        `json:"family_name,omitempty"`
	Tenants       []TenantRoles `json:"tenants,omitempty"`
	IsAnonymous   bool          `json:"isAnonymous"`
	IsMachine     bool          `json:"isMachine"`
}

// UserInfo holds OIDC standard claims plus tenants.
type UserInfo struct {
	Sub           string        `json:"sub"`
	Email         string        `json:"email,omitempty"`
	EmailVerified bool          `json:"email_verified"`
	Name          string        `json:"name,omitempty"`
	GivenName     string        `json:"given_name,omitempty"`
	FamilyName    string        `json:"family_name,omitempty"`
	Picture       string        `json:"picture,omitempty"`
	UpdatedAt     int64         `json:"updated_at,omitempty"`
	Tenants       []TenantRoles `json:"tenants"`
}

// RedirectCheck is the outcome of ValidateRedirectURI.
type RedirectCheck struct {
	Valid          bool   `json:"valid"`
	Reason         string `json:"reason,omitempty"`
	MatchedPattern string `json:"matched_pattern,omitempty"`
	Tenant         string `json:"tenant,omitempty"`
}
