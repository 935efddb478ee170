package repository

import (
	"context"
	"time"
)

// AuthorizationCode es un código de autorización de un solo uso.
// El código en claro nunca se persiste: se guarda SHA-256 base64url.
type AuthorizationCode struct {
	CodeHash      string
	UserID        string
	ApplicationID string

	// RedirectURI es el valor exacto presentado en /authorize.
	RedirectURI string
	Scope       string
	State       string
	Nonce       string

	CodeChallenge       string
	CodeChallengeMethod string

	TenantID        string
	TenantSubdomain string

	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Expired reporta si el código venció respecto a now.
func (c *AuthorizationCode) Expired(now time.Time) bool { return !now.Before(c.ExpiresAt) }

// Used reporta si el código ya fue consumido.
func (c *AuthorizationCode) Used() bool { return c.UsedAt != nil }

// AuthCodeRepository persiste authorization codes.
type AuthCodeRepository interface {
	// Create persiste un código nuevo. ErrConflict si el hash ya existe.
	Create(ctx context.Context, code AuthorizationCode) error

	// GetByHash retorna el código. ErrNotFound si no existe.
	GetByHash(ctx context.Context, codeHash string) (*AuthorizationCode, error)

	// MarkUsed setea used_at solo si todavía es NULL (update condicional).
	// ErrAlreadyUsed si otro canje ganó; ErrNotFound si no existe.
	MarkUsed(ctx context.Context, codeHash string, at time.Time) error

	// Delete borra el código. Idempotente.
	Delete(ctx context.Context, codeHash string) error

	// DeleteExpired borra los códigos vencidos y retorna cuántos.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
