// Package tenant resuelve tenants por slug con cache local y deduplicación de
// consultas concurrentes. Es el TenantLookup del validador de redirect URIs.
package tenant

import (
	"context"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
)

// Resolver cachea tenants encontrados por ttl. Los "no existe" no se cachean:
// un tenant recién creado tiene que ser visible en el próximo request.
type Resolver struct {
	repo  repository.TenantRepository
	cache *gocache.Cache
	sf    singleflight.Group
}

// NewResolver crea un resolver. ttl <= 0 = 1 minuto.
func NewResolver(repo repository.TenantRepository, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Resolver{repo: repo, cache: gocache.New(ttl, 2*ttl)}
}

// BySlug retorna el tenant o repository.ErrNotFound.
func (r *Resolver) BySlug(ctx context.Context, slug string) (*repository.Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, repository.ErrNotFound
	}
	if v, ok := r.cache.Get(slug); ok {
		return v.(*repository.Tenant), nil
	}
	v, err, _ := r.sf.Do(slug, func() (any, error) {
		t, err := r.repo.GetBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		r.cache.SetDefault(slug, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*repository.Tenant), nil
}

// TenantExists implementa validation.TenantLookup.
func (r *Resolver) TenantExists(ctx context.Context, slug string) (bool, error) {
	_, err := r.BySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate borra un slug del cache.
func (r *Resolver) Invalidate(slug string) { r.cache.Delete(strings.ToLower(slug)) }
