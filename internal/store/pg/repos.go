package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
)

// ─── applications ───

type appRepo struct{ pool *pgxpool.Pool }

const appColumns = `id::text, client_id, name, type, client_secret_hash, redirect_uris,
	access_token_ttl_seconds, refresh_token_ttl_seconds, licensing_mode, is_active, created_at`

func (r *appRepo) scan(ctx context.Context, where string, arg any) (*repository.Application, error) {
	query := `SELECT ` + appColumns + ` FROM application WHERE ` + where
	var (
		a          repository.Application
		secretHash *string
		accessTTL  *int32
		refreshTTL *int32
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.ClientID, &a.Name, &a.Type, &secretHash, &a.RedirectURIs,
		&accessTTL, &refreshTTL, &a.LicensingMode, &a.IsActive, &a.CreatedAt,
	)
	if err != nil {
		return nil, notFound("get application", err)
	}
	a.ClientSecretHash = deref(secretHash)
	a.AccessTokenTTL = seconds(accessTTL)
	a.RefreshTokenTTL = seconds(refreshTTL)
	return &a, nil
}

func (r *appRepo) GetByClientID(ctx context.Context, clientID string) (*repository.Application, error) {
	return r.scan(ctx, `client_id = $1`, clientID)
}

func (r *appRepo) GetByID(ctx context.Context, id string) (*repository.Application, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.scan(ctx, `id = $1`, uid)
}

// ─── authorization codes ───

type codeRepo struct{ pool *pgxpool.Pool }

func (r *codeRepo) Create(ctx context.Context, c repository.AuthorizationCode) error {
	const query = `
		INSERT INTO authorization_code (
			code_hash, user_id, application_id, redirect_uri, scope, state, nonce,
			code_challenge, code_challenge_method, tenant_id, tenant_subdomain, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		c.CodeHash, c.UserID, c.ApplicationID, c.RedirectURI, c.Scope, c.State, c.Nonce,
		c.CodeChallenge, c.CodeChallengeMethod, nullIfEmpty(c.TenantID), c.TenantSubdomain, c.ExpiresAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("pg: create authorization code: %w", err)
	}
	return nil
}

func (r *codeRepo) GetByHash(ctx context.Context, codeHash string) (*repository.AuthorizationCode, error) {
	const query = `
		SELECT code_hash, user_id::text, application_id::text, redirect_uri, scope, state, nonce,
		       code_challenge, code_challenge_method, tenant_id::text, tenant_subdomain,
		       expires_at, used_at, created_at
		FROM authorization_code WHERE code_hash = $1
	`
	var (
		c        repository.AuthorizationCode
		tenantID *string
	)
	err := r.pool.QueryRow(ctx, query, codeHash).Scan(
		&c.CodeHash, &c.UserID, &c.ApplicationID, &c.RedirectURI, &c.Scope, &c.State, &c.Nonce,
		&c.CodeChallenge, &c.CodeChallengeMethod, &tenantID, &c.TenantSubdomain,
		&c.ExpiresAt, &c.UsedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, notFound("get authorization code", err)
	}
	c.TenantID = deref(tenantID)
	return &c, nil
}

func (r *codeRepo) MarkUsed(ctx context.Context, codeHash string, at time.Time) error {
	const query = `UPDATE authorization_code SET used_at = $2 WHERE code_hash = $1 AND used_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, codeHash, at)
	if err != nil {
		return fmt.Errorf("pg: mark code used: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// 0 filas: o no existe o ya estaba usado
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM authorization_code WHERE code_hash = $1)`, codeHash).Scan(&exists); err != nil {
		return fmt.Errorf("pg: mark code used: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrAlreadyUsed
}

func (r *codeRepo) Delete(ctx context.Context, codeHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM authorization_code WHERE code_hash = $1`, codeHash)
	if err != nil {
		return fmt.Errorf("pg: delete authorization code: %w", err)
	}
	return nil
}

func (r *codeRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM authorization_code WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("pg: delete expired codes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ─── refresh sessions ───

type sessionRepo struct{ pool *pgxpool.Pool }

const sessionColumns = `id::text, user_id::text, application_id::text, scope, tenant_id::text, tenant_subdomain,
	user_agent, ip_address, rotated_from::text, expires_at, revoked, revoked_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*repository.RefreshSession, error) {
	var (
		s           repository.RefreshSession
		tenantID    *string
		rotatedFrom *string
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.ApplicationID, &s.Scope, &tenantID, &s.TenantSubdomain,
		&s.UserAgent, &s.IPAddress, &rotatedFrom, &s.ExpiresAt, &s.Revoked, &s.RevokedAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.TenantID = deref(tenantID)
	s.RotatedFrom = deref(rotatedFrom)
	return &s, nil
}

// sessionQuerier: pool o tx.
type sessionQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertSession(ctx context.Context, q sessionQuerier, in repository.CreateRefreshSessionInput) (*repository.RefreshSession, error) {
	var id any
	if in.ID != "" {
		uid, ok := parseID(in.ID)
		if !ok {
			return nil, fmt.Errorf("pg: session id %q: %w", in.ID, repository.ErrInvalidInput)
		}
		id = uid
	}
	query := `
		INSERT INTO refresh_session (
			id, user_id, application_id, scope, tenant_id, tenant_subdomain,
			user_agent, ip_address, rotated_from, expires_at
		) VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + sessionColumns
	s, err := scanSession(q.QueryRow(ctx, query,
		id, in.UserID, in.ApplicationID, in.Scope, nullIfEmpty(in.TenantID), in.TenantSubdomain,
		in.UserAgent, in.IPAddress, nullIfEmpty(in.RotatedFrom), in.ExpiresAt,
	))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, repository.ErrConflict
	}
	return s, err
}

func (r *sessionRepo) Create(ctx context.Context, in repository.CreateRefreshSessionInput) (*repository.RefreshSession, error) {
	s, err := insertSession(ctx, r.pool, in)
	if err != nil {
		if repository.IsConflict(err) || errors.Is(err, repository.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("pg: create refresh session: %w", err)
	}
	return s, nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*repository.RefreshSession, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	query := `SELECT ` + sessionColumns + ` FROM refresh_session WHERE id = $1`
	s, err := scanSession(r.pool.QueryRow(ctx, query, uid))
	if err != nil {
		return nil, notFound("get refresh session", err)
	}
	return s, nil
}

const revokeSessionQuery = `UPDATE refresh_session SET revoked = TRUE, revoked_at = $2 WHERE id = $1 AND revoked = FALSE`

func (r *sessionRepo) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	uid, ok := parseID(id)
	if !ok {
		return false, repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, revokeSessionQuery, uid, at)
	if err != nil {
		return false, fmt.Errorf("pg: revoke refresh session: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	exists, err := sessionExists(ctx, r.pool, uid)
	if err != nil {
		return false, fmt.Errorf("pg: revoke refresh session: %w", err)
	}
	if !exists {
		return false, repository.ErrNotFound
	}
	return false, nil
}

// Rotate corre el UPDATE condicional y el INSERT en la misma transacción.
func (r *sessionRepo) Rotate(ctx context.Context, oldID string, in repository.CreateRefreshSessionInput, at time.Time) (*repository.RefreshSession, error) {
	uid, ok := parseID(oldID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pg: rotate refresh session: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, revokeSessionQuery, uid, at)
	if err != nil {
		return nil, fmt.Errorf("pg: rotate refresh session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := sessionExists(ctx, tx, uid)
		if err != nil {
			return nil, fmt.Errorf("pg: rotate refresh session: %w", err)
		}
		if !exists {
			return nil, repository.ErrNotFound
		}
		return nil, repository.ErrAlreadyUsed
	}

	s, err := insertSession(ctx, tx, in)
	if err != nil {
		if repository.IsConflict(err) || errors.Is(err, repository.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("pg: rotate refresh session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("pg: rotate refresh session: commit: %w", err)
	}
	return s, nil
}

func sessionExists(ctx context.Context, q sessionQuerier, id uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM refresh_session WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *sessionRepo) RevokeAllByUser(ctx context.Context, userID, applicationID string, at time.Time) (int, error) {
	uid, ok := parseID(userID)
	if !ok {
		return 0, nil
	}
	var (
		query string
		args  []any
	)
	if applicationID != "" {
		aid, ok := parseID(applicationID)
		if !ok {
			return 0, nil
		}
		query = `UPDATE refresh_session SET revoked = TRUE, revoked_at = $3 WHERE user_id = $1 AND application_id = $2 AND revoked = FALSE`
		args = []any{uid, aid, at}
	} else {
		query = `UPDATE refresh_session SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
		args = []any{uid, at}
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("pg: revoke user sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *sessionRepo) ListActiveByUser(ctx context.Context, userID, applicationID string, now time.Time) ([]repository.RefreshSession, error) {
	out := []repository.RefreshSession{}
	uid, ok := parseID(userID)
	if !ok {
		return out, nil
	}
	// $3 NULL = todas las aplicaciones
	var appArg any
	if applicationID != "" {
		aid, ok := parseID(applicationID)
		if !ok {
			return out, nil
		}
		appArg = aid
	}
	query := `SELECT ` + sessionColumns + ` FROM refresh_session
		WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2
		  AND ($3::uuid IS NULL OR application_id = $3::uuid)
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, uid, now, appArg)
	if err != nil {
		return nil, fmt.Errorf("pg: list sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("pg: scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ─── users ───

type userRepo struct{ pool *pgxpool.Pool }

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	const query = `
		SELECT id::text, email, email_verified, given_name, family_name, display_name, picture,
		       is_anonymous, is_machine, created_at, updated_at
		FROM app_user WHERE id = $1
	`
	uid, ok := parseID(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	var u repository.User
	err := r.pool.QueryRow(ctx, query, uid).Scan(
		&u.ID, &u.Email, &u.EmailVerified, &u.GivenName, &u.FamilyName, &u.DisplayName, &u.Picture,
		&u.IsAnonymous, &u.IsMachine, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, notFound("get user", err)
	}
	return &u, nil
}

// ─── tenants & memberships ───

type tenantRepo struct{ pool *pgxpool.Pool }

func (r *tenantRepo) get(ctx context.Context, where string, arg any) (*repository.Tenant, error) {
	var t repository.Tenant
	err := r.pool.QueryRow(ctx, `SELECT id::text, slug, name, created_at FROM tenant WHERE `+where, arg).
		Scan(&t.ID, &t.Slug, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, notFound("get tenant", err)
	}
	return &t, nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	uid, ok := parseID(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.get(ctx, `id = $1`, uid)
}

func (r *tenantRepo) GetBySlug(ctx context.Context, slug string) (*repository.Tenant, error) {
	return r.get(ctx, `slug = lower($1)`, slug)
}

type membershipRepo struct{ pool *pgxpool.Pool }

const membershipQuery = `
	SELECT m.id::text, m.user_id::text, m.tenant_id::text, m.status, m.joined_at,
	       t.id::text, t.slug, t.name, t.created_at
	FROM membership m JOIN tenant t ON t.id = m.tenant_id
`

func (r *membershipRepo) scanMembership(row rowScanner) (*repository.Membership, error) {
	var m repository.Membership
	err := row.Scan(&m.ID, &m.UserID, &m.TenantID, &m.Status, &m.JoinedAt,
		&m.Tenant.ID, &m.Tenant.Slug, &m.Tenant.Name, &m.Tenant.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepo) loadRoles(ctx context.Context, m *repository.Membership) error {
	const query = `
		SELECT tr.slug, tr.name, tr.permissions
		FROM membership_role mr JOIN tenant_role tr ON tr.id = mr.tenant_role_id
		WHERE mr.membership_id = $1
		ORDER BY tr.slug
	`
	mid, ok := parseID(m.ID)
	if !ok {
		return fmt.Errorf("pg: membership id %q: %w", m.ID, repository.ErrInvalidInput)
	}
	rows, err := r.pool.Query(ctx, query, mid)
	if err != nil {
		return fmt.Errorf("pg: membership roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role repository.TenantRole
		if err := rows.Scan(&role.Slug, &role.Name, &role.Permissions); err != nil {
			return fmt.Errorf("pg: scan role: %w", err)
		}
		m.Roles = append(m.Roles, role)
	}
	return rows.Err()
}

func (r *membershipRepo) Get(ctx context.Context, userID, tenantID string) (*repository.Membership, error) {
	ids, ok := parseIDs(userID, tenantID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	m, err := r.scanMembership(r.pool.QueryRow(ctx,
		membershipQuery+` WHERE m.user_id = $1 AND m.tenant_id = $2`, ids[0], ids[1]))
	if err != nil {
		return nil, notFound("get membership", err)
	}
	if err := r.loadRoles(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *membershipRepo) ListActiveByUser(ctx context.Context, userID string) ([]repository.Membership, error) {
	uid, ok := parseID(userID)
	if !ok {
		return []repository.Membership{}, nil
	}
	rows, err := r.pool.Query(ctx,
		membershipQuery+` WHERE m.user_id = $1 AND m.status = 'ACTIVE' ORDER BY t.slug`, uid)
	if err != nil {
		return nil, fmt.Errorf("pg: list memberships: %w", err)
	}
	var out []repository.Membership
	for rows.Next() {
		m, err := r.scanMembership(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("pg: scan membership: %w", err)
		}
		out = append(out, *m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// roles después de cerrar rows: el pool puede tener una sola conexión libre
	for i := range out {
		if err := r.loadRoles(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []repository.Membership{}
	}
	return out, nil
}

func (r *membershipRepo) ListApplicationRoles(ctx context.Context, membershipID, applicationID string) ([]string, error) {
	const query = `
		SELECT role_slug FROM membership_app_role
		WHERE membership_id = $1 AND application_id = $2
		ORDER BY role_slug
	`
	ids, ok := parseIDs(membershipID, applicationID)
	if !ok {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, query, ids[0], ids[1])
	if err != nil {
		return nil, fmt.Errorf("pg: app roles: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("pg: scan app role: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ─── licenses ───

type licenseRepo struct{ pool *pgxpool.Pool }

func (r *licenseRepo) GetTenantSubscription(ctx context.Context, tenantID, applicationID string) (*repository.License, error) {
	const query = `
		SELECT lt.slug, lt.name, lt.features
		FROM tenant_subscription ts JOIN license_type lt ON lt.id = ts.license_type_id
		WHERE ts.tenant_id = $1 AND ts.application_id = $2 AND ts.status = 'ACTIVE'
	`
	ids, ok := parseIDs(tenantID, applicationID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	var l repository.License
	if err := r.pool.QueryRow(ctx, query, ids[0], ids[1]).Scan(&l.TypeSlug, &l.TypeName, &l.Features); err != nil {
		return nil, notFound("get tenant subscription", err)
	}
	return &l, nil
}

func (r *licenseRepo) GetUserAssignment(ctx context.Context, tenantID, userID, applicationID string) (*repository.License, error) {
	const query = `
		SELECT lt.slug, lt.name, lt.features
		FROM license_assignment la JOIN license_type lt ON lt.id = la.license_type_id
		WHERE la.tenant_id = $1 AND la.user_id = $2 AND la.application_id = $3
	`
	ids, ok := parseIDs(tenantID, userID, applicationID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	var l repository.License
	if err := r.pool.QueryRow(ctx, query, ids[0], ids[1], ids[2]).Scan(&l.TypeSlug, &l.TypeName, &l.Features); err != nil {
		return nil, notFound("get license assignment", err)
	}
	return &l, nil
}
