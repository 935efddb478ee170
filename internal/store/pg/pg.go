// Package pg implementa los repositorios de dominio sobre PostgreSQL con pgxpool.
//
// Consumo de códigos y revocación de sesiones son UPDATE condicionales
// (WHERE used_at IS NULL / WHERE revoked = FALSE): la base arbitra las carreras.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
)

// Config del pool.
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// DB envuelve el pool y entrega los repositorios.
type DB struct {
	pool *pgxpool.Pool
}

// Open crea el pool y verifica la conexión.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	poolCfg.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = 2
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &DB{pool: pool}, nil
}

// NewFromPool usa un pool existente.
func NewFromPool(pool *pgxpool.Pool) *DB { return &DB{pool: pool} }

// Close cierra el pool.
func (db *DB) Close() { db.pool.Close() }

// Ping verifica la conexión (readyz).
func (db *DB) Ping(ctx context.Context) error { return db.pool.Ping(ctx) }

func (db *DB) Applications() repository.ApplicationRepository       { return &appRepo{db.pool} }
func (db *DB) AuthCodes() repository.AuthCodeRepository              { return &codeRepo{db.pool} }
func (db *DB) RefreshSessions() repository.RefreshSessionRepository { return &sessionRepo{db.pool} }
func (db *DB) Users() repository.UserRepository                     { return &userRepo{db.pool} }
func (db *DB) Tenants() repository.TenantRepository                 { return &tenantRepo{db.pool} }
func (db *DB) Memberships() repository.MembershipRepository         { return &membershipRepo{db.pool} }
func (db *DB) Licenses() repository.LicenseRepository               { return &licenseRepo{db.pool} }

// notFound traduce pgx.ErrNoRows; cualquier otro error se envuelve con op.
func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("pg: %s: %w", op, err)
}

// parseID convierte un id externo a UUID. Las columnas se comparan sin cast
// para que Postgres use sus índices; un id malformado no puede existir.
func parseID(id string) (uuid.UUID, bool) {
	u, err := uuid.Parse(id)
	return u, err == nil
}

func parseIDs(ids ...string) ([]uuid.UUID, bool) {
	out := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		u, ok := parseID(id)
		if !ok {
			return nil, false
		}
		out[i] = u
	}
	return out, true
}

// nullIfEmpty: para columnas UUID/TEXT opcionales.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func seconds(v *int32) time.Duration {
	if v == nil || *v <= 0 {
		return 0
	}
	return time.Duration(*v) * time.Second
}
