// Package server arma el grafo de dependencias del servidor HTTP a partir
// de la configuración: store, cache, claves, services, controllers y rutas.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/authvital/internal/cache"
	"github.com/dropDatabas3/authvital/internal/config"
	healthctrl "github.com/dropDatabas3/authvital/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/authvital/internal/http/controllers/oauth"
	oidcctrl "github.com/dropDatabas3/authvital/internal/http/controllers/oidc"
	"github.com/dropDatabas3/authvital/internal/http/router"
	healthsvc "github.com/dropDatabas3/authvital/internal/http/services/health"
	"github.com/dropDatabas3/authvital/internal/http/services/oauth"
	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
	"github.com/dropDatabas3/authvital/internal/metrics"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
	"github.com/dropDatabas3/authvital/internal/rate"
	"github.com/dropDatabas3/authvital/internal/redirecttoken"
	"github.com/dropDatabas3/authvital/internal/store"
	"github.com/dropDatabas3/authvital/internal/tenant"
	"github.com/dropDatabas3/authvital/internal/validation"
)

// Version se inyecta con -ldflags.
var Version = "dev"

// App es el servidor armado.
type App struct {
	Handler        http.Handler
	Services       oauth.Services
	RedirectTokens *redirecttoken.Service
	Keys           jwtx.KeyService
	Metrics        *metrics.Recorder

	cfg           *config.Config
	redirectStore redirecttoken.Store
	closers       []func()
}

// Build abre store y cache según cfg y arma la App.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	repos, err := store.Open(ctx, store.Config{
		Driver:      cfg.Storage.Driver,
		DSN:         cfg.Storage.DSN,
		MaxConns:    cfg.Storage.Postgres.MaxConns,
		MinConns:    cfg.Storage.Postgres.MinConns,
		AutoMigrate: cfg.Storage.AutoMigrate,
		SeedFile:    cfg.Storage.SeedFile,
	})
	if err != nil {
		return nil, fmt.Errorf("server: open store: %w", err)
	}

	cc, err := cache.New(cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.CacheDefaultTTL(),
	})
	if err != nil {
		repos.Close()
		return nil, fmt.Errorf("server: open cache: %w", err)
	}

	keys, err := LoadKeys(cfg)
	if err != nil {
		_ = cc.Close()
		repos.Close()
		return nil, err
	}

	app := BuildWith(cfg, repos, cc, keys)
	app.closers = append(app.closers, func() { _ = cc.Close() }, repos.Close)
	return app, nil
}

// LoadKeys arma el key service desde jwt.signing_key. Fuera de prod, sin
// clave configurada, genera una efímera.
func LoadKeys(cfg *config.Config) (*jwtx.LocalKeyService, error) {
	var (
		sk  *jwtx.SigningKey
		err error
	)
	switch {
	case cfg.JWT.SigningKey != "":
		sk, err = jwtx.ParseSeed(cfg.JWT.SigningKey)
	case cfg.IsProd():
		return nil, errors.New("server: jwt.signing_key is required in prod")
	default:
		sk, err = jwtx.GenerateSigningKey()
		if err == nil {
			logger.L().Warn("using ephemeral signing key; tokens will not survive a restart", logger.String("kid", sk.KID))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("server: signing key: %w", err)
	}
	return jwtx.NewLocalKeyService(jwtx.NewKeystore(sk)), nil
}

// BuildWith arma la App sobre dependencias ya abiertas (tests, CLI).
func BuildWith(cfg *config.Config, repos *store.Repositories, cc cache.Client, keys jwtx.KeyService) *App {
	rec := metrics.NewRecorder(prometheus.NewRegistry())

	resolver := tenant.NewResolver(repos.Tenants, cfg.TenantCacheTTL())
	validator := validation.NewRedirectValidator(resolver, validation.RedirectOptions{
		AllowHTTP:            cfg.RedirectAllowHTTP(),
		AllowIPAddresses:     cfg.Redirect.AllowIPAddresses,
		ValidateTenantExists: cfg.RedirectValidateTenantExists(),
	})

	services := oauth.NewServices(oauth.Deps{
		Applications:    repos.Applications,
		AuthCodes:       repos.AuthCodes,
		RefreshSessions: repos.RefreshSessions,
		Users:           repos.Users,
		Tenants:         repos.Tenants,
		Memberships:     repos.Memberships,
		Licenses:        repos.Licenses,
		Keys:            keys,
		Validator:       validator,
		Resolver:        resolver,
		Metrics:         rec,
		Issuer:          cfg.JWT.Issuer,
		AccessTTL:       cfg.AccessTTL(),
		RefreshTTL:      cfg.RefreshTTL(),
	})

	rtStore := redirecttoken.NewCacheStore(cc)
	rt := redirecttoken.NewService(rtStore, cfg.RedirectTokenTTL())

	health := healthsvc.NewHealthService(healthsvc.Deps{
		Keys:       keys,
		Issuer:     cfg.JWT.Issuer,
		Version:    Version,
		DBCheck:    repos.Ping,
		CacheCheck: cc.Ping,
	})

	handler := router.New(router.Deps{
		OAuth:   oauthctrl.NewControllers(services, rt),
		OIDC:    oidcctrl.NewControllers(services),
		Health:  healthctrl.NewHealthController(health),
		Keys:    keys,
		Issuer:  cfg.JWT.Issuer,
		Limiter: newLimiter(cfg, cc),
		Metrics: rec,
	})

	return &App{
		Handler:        handler,
		Services:       services,
		RedirectTokens: rt,
		Keys:           keys,
		Metrics:        rec,
		cfg:            cfg,
		redirectStore:  rtStore,
	}
}

// newLimiter usa Redis si el cache es Redis (compartido entre réplicas).
func newLimiter(cfg *config.Config, cc cache.Client) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	if r, ok := cc.(*cache.Redis); ok {
		return rate.NewRedisLimiter(r.Raw(), cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.MaxRequests, cfg.RateWindow())
	}
	return rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.RateWindow())
}

// RunBackground lanza el sweep de redirect tokens y el janitor de códigos
// hasta que ctx se cancele.
func (a *App) RunBackground(ctx context.Context) {
	go redirecttoken.RunSweeper(ctx, a.redirectStore, a.cfg.RedirectTokenSweep())
	go a.Services.Janitor.Run(ctx, a.cfg.JanitorInterval())
}

// HTTPServer retorna el http.Server con los timeouts de cfg.
func (a *App) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Handler,
		ReadTimeout:       a.cfg.ReadTimeout(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      a.cfg.WriteTimeout(),
		IdleTimeout:       120 * time.Second,
	}
}

// Close libera cache y store.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
