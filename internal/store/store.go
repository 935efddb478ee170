// Package store abre la capa de persistencia configurada y expone los
// repositorios que consume el motor OAuth.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/authvital/internal/domain/repository"
	"github.com/dropDatabas3/authvital/internal/store/memory"
	"github.com/dropDatabas3/authvital/internal/store/pg"
)

// Repositories agrupa los puertos de dominio de un backend.
type Repositories struct {
	Applications    repository.ApplicationRepository
	AuthCodes       repository.AuthCodeRepository
	RefreshSessions repository.RefreshSessionRepository
	Users           repository.UserRepository
	Tenants         repository.TenantRepository
	Memberships     repository.MembershipRepository
	Licenses        repository.LicenseRepository

	// Ping verifica el backend. nil en memory.
	Ping func(ctx context.Context) error

	// Close libera el backend. Nunca nil.
	Close func()
}

// Config selecciona y configura el backend.
type Config struct {
	Driver      string // memory | postgres
	DSN         string
	MaxConns    int32
	MinConns    int32
	AutoMigrate bool
	// SeedFile carga datos iniciales en el backend memory (dev).
	SeedFile string
}

// Open abre el backend indicado por cfg.Driver.
func Open(ctx context.Context, cfg Config) (*Repositories, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		m := memory.New()
		if cfg.SeedFile != "" {
			if err := m.LoadSeedFile(cfg.SeedFile); err != nil {
				return nil, err
			}
		}
		return FromMemory(m), nil
	case "postgres", "pg", "postgresql":
		db, err := pg.Open(ctx, pg.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx, cfg.DSN); err != nil {
				db.Close()
				return nil, err
			}
		}
		return FromPostgres(db), nil
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// FromMemory expone un store en memoria como Repositories.
func FromMemory(m *memory.Store) *Repositories {
	return &Repositories{
		Applications:    m.Applications(),
		AuthCodes:       m.AuthCodes(),
		RefreshSessions: m.RefreshSessions(),
		Users:           m.Users(),
		Tenants:         m.Tenants(),
		Memberships:     m.Memberships(),
		Licenses:        m.Licenses(),
		Close:           func() {},
	}
}

// FromPostgres expone un pool PostgreSQL como Repositories.
func FromPostgres(db *pg.DB) *Repositories {
	return &Repositories{
		Applications:    db.Applications(),
		AuthCodes:       db.AuthCodes(),
		RefreshSessions: db.RefreshSessions(),
		Users:           db.Users(),
		Tenants:         db.Tenants(),
		Memberships:     db.Memberships(),
		Licenses:        db.Licenses(),
		Ping:            db.Ping,
		Close:           db.Close,
	}
}
