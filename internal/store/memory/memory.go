// Package memory implementa los repositorios de dominio en memoria.
// Pensado para desarrollo, tests y despliegues de una sola instancia: los
// datos se pierden al reiniciar.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
)

// Store guarda todo detrás de un único RWMutex. Las operaciones condicionales
// (MarkUsed, Revoke) son atómicas porque chequean y escriben con el lock tomado.
type Store struct {
	mu sync.RWMutex

	apps         map[string]repository.Application // id -> app
	appsByClient map[string]string                 // client_id -> id

	codes    map[string]repository.AuthorizationCode // code_hash -> code
	sessions map[string]repository.RefreshSession    // id -> session

	users         map[string]repository.User
	tenants       map[string]repository.Tenant // id -> tenant
	tenantsBySlug map[string]string            // slug -> id
	memberships   map[string]repository.Membership
	appRoles      map[string][]string // membershipID|appID -> slugs

	tenantLicenses map[string]repository.License // tenantID|appID
	seatLicenses   map[string]repository.License // tenantID|userID|appID
}

// New crea un store vacío.
func New() *Store {
	return &Store{
		apps:           map[string]repository.Application{},
		appsByClient:   map[string]string{},
		codes:          map[string]repository.AuthorizationCode{},
		sessions:       map[string]repository.RefreshSession{},
		users:          map[string]repository.User{},
		tenants:        map[string]repository.Tenant{},
		tenantsBySlug:  map[string]string{},
		memberships:    map[string]repository.Membership{},
		appRoles:       map[string][]string{},
		tenantLicenses: map[string]repository.License{},
		seatLicenses:   map[string]repository.License{},
	}
}

func key(parts ...string) string { return strings.Join(parts, "|") }

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ─── Seed ───

// PutApplication inserta o reemplaza una aplicación. Genera ID si falta.
func (s *Store) PutApplication(a repository.Application) repository.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.RedirectURIs = cloneStrings(a.RedirectURIs)
	s.apps[a.ID] = a
	s.appsByClient[a.ClientID] = a.ID
	return a
}

// PutUser inserta o reemplaza un usuario.
func (s *Store) PutUser(u repository.User) repository.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = u
	return u
}

// PutTenant inserta o reemplaza un tenant.
func (s *Store) PutTenant(t repository.Tenant) repository.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Slug = strings.ToLower(t.Slug)
	s.tenants[t.ID] = t
	s.tenantsBySlug[t.Slug] = t.ID
	return t
}

// PutMembership inserta o reemplaza una membresía. Tenant se completa solo.
func (s *Store) PutMembership(m repository.Membership) repository.Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = repository.MembershipActive
	}
	if t, ok := s.tenants[m.TenantID]; ok {
		m.Tenant = t
	}
	s.memberships[m.ID] = m
	return m
}

// SetApplicationRoles asigna roles de aplicación a una membresía.
func (s *Store) SetApplicationRoles(membershipID, applicationID string, slugs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appRoles[key(membershipID, applicationID)] = cloneStrings(slugs)
}

// SetTenantLicense define la suscripción activa de un tenant.
func (s *Store) SetTenantLicense(tenantID, applicationID string, l repository.License) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenantLicenses[key(tenantID, applicationID)] = l
}

// SetSeatLicense define la licencia individual de un usuario.
func (s *Store) SetSeatLicense(tenantID, userID, applicationID string, l repository.License) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seatLicenses[key(tenantID, userID, applicationID)] = l
}

// ─── Applications ───

type appRepo struct{ s *Store }

func (s *Store) Applications() repository.ApplicationRepository { return appRepo{s} }

func (r appRepo) GetByClientID(_ context.Context, clientID string) (*repository.Application, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.appsByClient[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a := r.s.apps[id]
	a.RedirectURIs = cloneStrings(a.RedirectURIs)
	return &a, nil
}

func (r appRepo) GetByID(_ context.Context, id string) (*repository.Application, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.RedirectURIs = cloneStrings(a.RedirectURIs)
	return &a, nil
}

// ─── Authorization codes ───

type codeRepo struct{ s *Store }

func (s *Store) AuthCodes() repository.AuthCodeRepository { return codeRepo{s} }

func (r codeRepo) Create(_ context.Context, c repository.AuthorizationCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.codes[c.CodeHash]; exists {
		return repository.ErrConflict
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UsedAt = nil
	r.s.codes[c.CodeHash] = c
	return nil
}

func (r codeRepo) GetByHash(_ context.Context, codeHash string) (*repository.AuthorizationCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.codes[codeHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.UsedAt = cloneTime(c.UsedAt)
	return &c, nil
}

func (r codeRepo) MarkUsed(_ context.Context, codeHash string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.codes[codeHash]
	if !ok {
		return repository.ErrNotFound
	}
	if c.UsedAt != nil {
		return repository.ErrAlreadyUsed
	}
	c.UsedAt = &at
	r.s.codes[codeHash] = c
	return nil
}

func (r codeRepo) Delete(_ context.Context, codeHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.codes, codeHash)
	return nil
}

func (r codeRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for h, c := range r.s.codes {
		if c.Expired(now) {
			delete(r.s.codes, h)
			n++
		}
	}
	return n, nil
}

// ─── Refresh sessions ───

type sessionRepo struct{ s *Store }

func (s *Store) RefreshSessions() repository.RefreshSessionRepository { return sessionRepo{s} }

func newSession(in repository.CreateRefreshSessionInput) repository.RefreshSession {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	return repository.RefreshSession{
		ID:              id,
		UserID:          in.UserID,
		ApplicationID:   in.ApplicationID,
		Scope:           in.Scope,
		TenantID:        in.TenantID,
		TenantSubdomain: in.TenantSubdomain,
		UserAgent:       in.UserAgent,
		IPAddress:       in.IPAddress,
		RotatedFrom:     in.RotatedFrom,
		ExpiresAt:       in.ExpiresAt,
		CreatedAt:       time.Now().UTC(),
	}
}

func (r sessionRepo) Create(_ context.Context, in repository.CreateRefreshSessionInput) (*repository.RefreshSession, error) {
	sess := newSession(in)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, dup := r.s.sessions[sess.ID]; dup {
		return nil, repository.ErrConflict
	}
	r.s.sessions[sess.ID] = sess
	out := sess
	return &out, nil
}

// Rotate hace revoke + insert bajo el mismo lock.
func (r sessionRepo) Rotate(_ context.Context, oldID string, in repository.CreateRefreshSessionInput, at time.Time) (*repository.RefreshSession, error) {
	next := newSession(in)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.sessions[oldID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if old.Revoked {
		return nil, repository.ErrAlreadyUsed
	}
	if _, dup := r.s.sessions[next.ID]; dup {
		return nil, repository.ErrConflict
	}
	old.Revoked = true
	old.RevokedAt = &at
	r.s.sessions[oldID] = old
	r.s.sessions[next.ID] = next
	out := next
	return &out, nil
}

func (r sessionRepo) Get(_ context.Context, id string) (*repository.RefreshSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	sess.RevokedAt = cloneTime(sess.RevokedAt)
	return &sess, nil
}

func (r sessionRepo) Revoke(_ context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if sess.Revoked {
		return false, nil
	}
	sess.Revoked = true
	sess.RevokedAt = &at
	r.s.sessions[id] = sess
	return true, nil
}

func (r sessionRepo) RevokeAllByUser(_ context.Context, userID, applicationID string, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, sess := range r.s.sessions {
		if sess.UserID != userID || sess.Revoked {
			continue
		}
		if applicationID != "" && sess.ApplicationID != applicationID {
			continue
		}
		t := at
		sess.Revoked = true
		sess.RevokedAt = &t
		r.s.sessions[id] = sess
		n++
	}
	return n, nil
}

func (r sessionRepo) ListActiveByUser(_ context.Context, userID, applicationID string, now time.Time) ([]repository.RefreshSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []repository.RefreshSession{}
	for _, sess := range r.s.sessions {
		if sess.UserID != userID || !sess.Usable(now) {
			continue
		}
		if applicationID != "" && sess.ApplicationID != applicationID {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ─── Users ───

type userRepo struct{ s *Store }

func (s *Store) Users() repository.UserRepository { return userRepo{s} }

func (r userRepo) GetByID(_ context.Context, id string) (*repository.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// ─── Tenants & memberships ───

type tenantRepo struct{ s *Store }

func (s *Store) Tenants() repository.TenantRepository { return tenantRepo{s} }

func (r tenantRepo) GetByID(_ context.Context, id string) (*repository.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r tenantRepo) GetBySlug(_ context.Context, slug string) (*repository.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.tenantsBySlug[strings.ToLower(slug)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t := r.s.tenants[id]
	return &t, nil
}

type membershipRepo struct{ s *Store }

func (s *Store) Memberships() repository.MembershipRepository { return membershipRepo{s} }

func cloneMembership(m repository.Membership) repository.Membership {
	roles := make([]repository.TenantRole, len(m.Roles))
	for i, r := range m.Roles {
		r.Permissions = cloneStrings(r.Permissions)
		roles[i] = r
	}
	m.Roles = roles
	return m
}

func (r membershipRepo) Get(_ context.Context, userID, tenantID string) (*repository.Membership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.memberships {
		if m.UserID == userID && m.TenantID == tenantID {
			out := cloneMembership(m)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r membershipRepo) ListActiveByUser(_ context.Context, userID string) ([]repository.Membership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []repository.Membership{}
	for _, m := range r.s.memberships {
		if m.UserID == userID && m.Status == repository.MembershipActive {
			out = append(out, cloneMembership(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tenant.Slug < out[j].Tenant.Slug })
	return out, nil
}

func (r membershipRepo) ListApplicationRoles(_ context.Context, membershipID, applicationID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return cloneStrings(r.s.appRoles[key(membershipID, applicationID)]), nil
}

// ─── Licenses ───

type licenseRepo struct{ s *Store }

func (s *Store) Licenses() repository.LicenseRepository { return licenseRepo{s} }

func (r licenseRepo) GetTenantSubscription(_ context.Context, tenantID, applicationID string) (*repository.License, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.tenantLicenses[key(tenantID, applicationID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	l.Features = cloneStrings(l.Features)
	return &l, nil
}

func (r licenseRepo) GetUserAssignment(_ context.Context, tenantID, userID, applicationID string) (*repository.License, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.seatLicenses[key(tenantID, userID, applicationID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	l.Features = cloneStrings(l.Features)
	return &l, nil
}
