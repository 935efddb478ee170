package repository

import (
	"context"
	"time"
)

// Tipos de aplicación OAuth.
const (
	AppTypeConfidential = "CONFIDENTIAL" // backend con client_secret
	AppTypeSPA          = "SPA"          // cliente público, PKCE obligatorio
)

// Modos de licenciamiento de una aplicación.
const (
	LicensingFree       = "FREE"
	LicensingTenantWide = "TENANT_WIDE"
	LicensingPerSeat    = "PER_SEAT"
)

// Application es un cliente OAuth registrado. Inmutable durante un request.
type Application struct {
	ID       string
	ClientID string // identificador público
	Name     string
	Type     string // CONFIDENTIAL | SPA

	// ClientSecretHash es bcrypt; vacío = sin secret configurado.
	ClientSecretHash string

	// RedirectURIs son patrones ordenados: exactos, "*" o "{tenant}".
	RedirectURIs []string

	// TTLs propios; cero = usar los defaults del issuer.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	LicensingMode string
	IsActive      bool
	CreatedAt     time.Time
}

// HasSecret reporta si la aplicación tiene un client secret configurado.
func (a *Application) HasSecret() bool { return a != nil && a.ClientSecretHash != "" }

// IsSPA reporta si la aplicación es un cliente público.
func (a *Application) IsSPA() bool { return a != nil && a.Type == AppTypeSPA }

// ApplicationRepository resuelve aplicaciones OAuth.
type ApplicationRepository interface {
	// GetByClientID busca por client_id público. ErrNotFound si no existe.
	GetByClientID(ctx context.Context, clientID string) (*Application, error)

	// GetByID busca por id interno. ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Application, error)
}
