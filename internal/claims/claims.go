// Package claims define los payloads tipados de cada token que emite el
// servidor. Los nombres json son el contrato del wire: no usar maps.
package claims

import (
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Valores de token_type.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeM2M     = "m2m"
)

// M2MSubjectPrefix antecede al client_id en el sub de tokens M2M.
const M2MSubjectPrefix = "app:"

// License es el resumen de licencia del tenant o del asiento del usuario.
type License struct {
	Type     string   `json:"type"`
	Name     string   `json:"name"`
	Features []string `json:"features"`
}

// Access es el access token de usuario. Los campos de tenant solo existen
// cuando el token fue emitido con tenant scope.
type Access struct {
	jwtv5.RegisteredClaims
	TokenType string `json:"token_type"`
	Scope     string `json:"scope"`
	ClientID  string `json:"client_id,omitempty"`

	Email      string `json:"email,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`

	TenantID          string   `json:"tenant_id,omitempty"`
	TenantSubdomain   string   `json:"tenant_subdomain,omitempty"`
	TenantRoles       []string `json:"tenant_roles,omitempty"`
	TenantPermissions []string `json:"tenant_permissions,omitempty"`
	AppRoles          []string `json:"app_roles,omitempty"`
	License           *License `json:"license,omitempty"`
}

// Refresh es el refresh token: una capacidad firmada que apunta a la
// RefreshSession sid. No lleva roles.
type Refresh struct {
	jwtv5.RegisteredClaims
	SessionID       string `json:"sid"`
	TokenType       string `json:"token_type"`
	Scope           string `json:"scope"`
	TenantID        string `json:"tenant_id,omitempty"`
	TenantSubdomain string `json:"tenant_subdomain,omitempty"`
}

// ID es el ID token OIDC mínimo.
type ID struct {
	jwtv5.RegisteredClaims
	Email      string `json:"email,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Nonce      string `json:"nonce,omitempty"`
}

// M2M es el access token de client_credentials: sin usuario ni refresh.
type M2M struct {
	jwtv5.RegisteredClaims
	TokenType string `json:"token_type"`
	Scope     string `json:"scope"`
	ClientID  string `json:"client_id"`
}

// Envelope decodifica cualquier token propio para introspección y revocación.
type Envelope struct {
	jwtv5.RegisteredClaims
	TokenType       string `json:"token_type"`
	Scope           string `json:"scope"`
	ClientID        string `json:"client_id"`
	SessionID       string `json:"sid"`
	TenantID        string `json:"tenant_id"`
	TenantSubdomain string `json:"tenant_subdomain"`
}

// FirstAudience retorna el primer aud o "".
func FirstAudience(rc jwtv5.RegisteredClaims) string {
	if len(rc.Audience) == 0 {
		return ""
	}
	return rc.Audience[0]
}
