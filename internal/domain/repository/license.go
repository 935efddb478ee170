package repository

import "context"

// License es el resumen de licencia que viaja en el claim "license".
type License struct {
	TypeSlug string
	TypeName string
	Features []string
}

// LicenseRepository resuelve licencias según el modo de la aplicación.
type LicenseRepository interface {
	// GetTenantSubscription retorna la suscripción activa del tenant para la
	// aplicación (modos FREE y TENANT_WIDE). ErrNotFound si no hay.
	GetTenantSubscription(ctx context.Context, tenantID, applicationID string) (*License, error)

	// GetUserAssignment retorna la licencia asignada al usuario dentro del
	// tenant (modo PER_SEAT). ErrNotFound si no hay.
	GetUserAssignment(ctx context.Context, tenantID, userID, applicationID string) (*License, error)
}
