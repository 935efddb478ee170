package repository

import (
	"context"
	"time"
)

// User contiene los campos de identidad que necesitan los tokens.
type User struct {
	ID            string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	DisplayName   string
	Picture       string
	IsAnonymous   bool
	IsMachine     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserRepository resuelve usuarios.
type UserRepository interface {
	// GetByID busca por ID. ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)
}
