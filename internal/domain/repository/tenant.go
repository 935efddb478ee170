package repository

import (
	"context"
	"time"
)

// Tenant es una organización. Solo se modela lo que usan los tokens.
type Tenant struct {
	ID        string
	Slug      string
	Name      string
	CreatedAt time.Time
}

// Estados de membresía.
const (
	MembershipActive    = "ACTIVE"
	MembershipInvited   = "INVITED"
	MembershipSuspended = "SUSPENDED"
)

// RoleOwner es el slug del rol de tenant con permisos totales.
const RoleOwner = "owner"

// TenantRole es un rol de tenant con sus permisos asignados explícitamente.
type TenantRole struct {
	Slug        string
	Name        string
	Permissions []string
}

// Membership vincula un usuario con un tenant.
type Membership struct {
	ID       string
	UserID   string
	TenantID string
	Status   string
	Tenant   Tenant
	Roles    []TenantRole
	JoinedAt time.Time
}

// IsOwner reporta si la membresía tiene el rol owner.
func (m *Membership) IsOwner() bool {
	for _, r := range m.Roles {
		if r.Slug == RoleOwner {
			return true
		}
	}
	return false
}

// TenantRepository resuelve tenants.
type TenantRepository interface {
	// GetByID busca por ID. ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Tenant, error)

	// GetBySlug busca por slug (subdominio). ErrNotFound si no existe.
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
}

// MembershipRepository resuelve membresías y roles.
type MembershipRepository interface {
	// Get retorna la membresía de userID en tenantID. ErrNotFound si no existe.
	Get(ctx context.Context, userID, tenantID string) (*Membership, error)

	// ListActiveByUser retorna las membresías ACTIVE del usuario.
	ListActiveByUser(ctx context.Context, userID string) ([]Membership, error)

	// ListApplicationRoles retorna los slugs de roles de aplicación
	// asignados a la membresía para applicationID.
	ListApplicationRoles(ctx context.Context, membershipID, applicationID string) ([]string, error)
}
