package repository

import (
	"context"
	"time"
)

// RefreshSession es el registro revocable al que apunta el sid de un refresh JWT.
// Nunca se borra: la revocación es permanente.
type RefreshSession struct {
	ID            string
	UserID        string
	ApplicationID string
	Scope         string

	TenantID        string
	TenantSubdomain string

	// Metadatos para "gestionar sesiones".
	UserAgent   string
	IPAddress   string
	RotatedFrom string

	ExpiresAt time.Time
	Revoked   bool
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Usable reporta si la sesión puede canjearse: no revocada y no vencida.
func (s *RefreshSession) Usable(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// CreateRefreshSessionInput contiene los datos para crear una sesión.
type CreateRefreshSessionInput struct {
	// ID opcional (UUID). Vacío = lo genera el backend.
	ID              string
	UserID          string
	ApplicationID   string
	Scope           string
	TenantID        string
	TenantSubdomain string
	UserAgent       string
	IPAddress       string
	RotatedFrom     string
	ExpiresAt       time.Time
}

// RefreshSessionRepository persiste refresh sessions.
type RefreshSessionRepository interface {
	// Create crea una sesión nueva (revoked=false) y la retorna con su ID.
	Create(ctx context.Context, in CreateRefreshSessionInput) (*RefreshSession, error)

	// Get busca por ID. ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*RefreshSession, error)

	// Revoke marca revoked=true solo si seguía activa (update condicional).
	// Retorna true si esta llamada la revocó, false si ya estaba revocada.
	// ErrNotFound si no existe.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)

	// Rotate revoca oldID y crea la sesión nueva como una sola operación:
	// o quedan las dos cosas hechas o ninguna. Si oldID ya estaba revocada no
	// crea nada y retorna ErrAlreadyUsed. ErrNotFound si oldID no existe.
	Rotate(ctx context.Context, oldID string, in CreateRefreshSessionInput, at time.Time) (*RefreshSession, error)

	// RevokeAllByUser revoca todas las sesiones activas del usuario.
	// Si applicationID no está vacío, filtra por esa aplicación.
	// Retorna cuántas sesiones revocó.
	RevokeAllByUser(ctx context.Context, userID, applicationID string, at time.Time) (int, error)

	// ListActiveByUser lista sesiones no revocadas y no vencidas, más nuevas primero.
	ListActiveByUser(ctx context.Context, userID, applicationID string, now time.Time) ([]RefreshSession, error)
}
