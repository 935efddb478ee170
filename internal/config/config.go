package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del servidor. Las duraciones se guardan
// como string (formato time.ParseDuration) igual que en el YAML; usar los
// accessors tipados para leerlas.
type Config struct {
	App struct {
		// dev | staging | prod
		Env  string `yaml:"env"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// memory | postgres
		Driver      string `yaml:"driver"`
		DSN         string `yaml:"dsn"`
		AutoMigrate bool   `yaml:"auto_migrate"`
		// Solo driver memory: YAML con tenants, usuarios y aplicaciones.
		SeedFile    string `yaml:"seed_file"`
		Postgres    struct {
			MaxConns int32 `yaml:"max_conns"`
			MinConns int32 `yaml:"min_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
		// Seed Ed25519 en base64 (ver `authvital keys generate`). Vacío en dev = clave efímera.
		SigningKey string `yaml:"signing_key"`
	} `yaml:"jwt"`

	Redirect struct {
		// nil = true fuera de prod
		AllowHTTP            *bool  `yaml:"allow_http"`
		AllowIPAddresses     bool   `yaml:"allow_ip_addresses"`
		ValidateTenantExists *bool  `yaml:"validate_tenant_exists"`
		TenantCacheTTL       string `yaml:"tenant_cache_ttl"`
	} `yaml:"redirect"`

	RedirectTokens struct {
		TTL           string `yaml:"ttl"`
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"redirect_tokens"`

	Janitor struct {
		Interval string `yaml:"interval"`
	} `yaml:"janitor"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`
}

// Load lee el YAML (si path no está vacío), aplica defaults y overrides de
// entorno (AUTHVITAL_*) y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "authvital"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Postgres.MaxConns == 0 {
		c.Storage.Postgres.MaxConns = 10
	}
	if c.Storage.Postgres.MinConns == 0 {
		c.Storage.Postgres.MinConns = 2
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "authvital:"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "http://localhost:8080"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.Redirect.TenantCacheTTL == "" {
		c.Redirect.TenantCacheTTL = "1m"
	}
	if c.RedirectTokens.TTL == "" {
		c.RedirectTokens.TTL = "60s"
	}
	if c.RedirectTokens.SweepInterval == "" {
		c.RedirectTokens.SweepInterval = "30s"
	}
	if c.Janitor.Interval == "" {
		c.Janitor.Interval = "5m"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
}

// Validate rechaza combinaciones que no pueden arrancar.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = append(errs, errors.New("config: jwt.issuer is required"))
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("config: storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("config: cache.redis.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown cache.kind %q", c.Cache.Kind))
	}
	for name, v := range map[string]string{
		"server.read_timeout":       c.Server.ReadTimeout,
		"server.write_timeout":      c.Server.WriteTimeout,
		"jwt.access_ttl":            c.JWT.AccessTTL,
		"jwt.refresh_ttl":           c.JWT.RefreshTTL,
		"redirect_tokens.ttl":       c.RedirectTokens.TTL,
		"rate.window":               c.Rate.Window,
		"janitor.interval":          c.Janitor.Interval,
		"redirect.tenant_cache_ttl": c.Redirect.TenantCacheTTL,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// IsProd reporta si app.env == prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// RedirectAllowHTTP: explícito en YAML/env o, si no, true fuera de prod.
func (c *Config) RedirectAllowHTTP() bool {
	if c.Redirect.AllowHTTP != nil {
		return *c.Redirect.AllowHTTP
	}
	return !c.IsProd()
}

// RedirectValidateTenantExists default true.
func (c *Config) RedirectValidateTenantExists() bool {
	if c.Redirect.ValidateTenantExists != nil {
		return *c.Redirect.ValidateTenantExists
	}
	return true
}

func (c *Config) AccessTTL() time.Duration    { return dur(c.JWT.AccessTTL, 15*time.Minute) }
func (c *Config) RefreshTTL() time.Duration   { return dur(c.JWT.RefreshTTL, 720*time.Hour) }
func (c *Config) ReadTimeout() time.Duration  { return dur(c.Server.ReadTimeout, 10*time.Second) }
func (c *Config) WriteTimeout() time.Duration { return dur(c.Server.WriteTimeout, 30*time.Second) }
func (c *Config) RedirectTokenTTL() time.Duration {
	return dur(c.RedirectTokens.TTL, time.Minute)
}
func (c *Config) RedirectTokenSweep() time.Duration {
	return dur(c.RedirectTokens.SweepInterval, 30*time.Second)
}
func (c *Config) TenantCacheTTL() time.Duration { return dur(c.Redirect.TenantCacheTTL, time.Minute) }
func (c *Config) JanitorInterval() time.Duration {
	return dur(c.Janitor.Interval, 5*time.Minute)
}
func (c *Config) RateWindow() time.Duration { return dur(c.Rate.Window, time.Minute) }
func (c *Config) CacheDefaultTTL() time.Duration {
	return dur(c.Cache.Memory.DefaultTTL, 2*time.Minute)
}

func dur(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ---- helpers env ----

const envPrefix = "AUTHVITAL_"

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// applyEnvOverrides pisa el YAML con variables AUTHVITAL_*.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("STORAGE_AUTO_MIGRATE"); ok {
		c.Storage.AutoMigrate = v
	}
	if v, ok := getEnvStr("STORAGE_SEED_FILE"); ok {
		c.Storage.SeedFile = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}
	if v, ok := getEnvStr("JWT_SIGNING_KEY"); ok {
		c.JWT.SigningKey = v
	}
	if v, ok := getEnvBool("REDIRECT_ALLOW_HTTP"); ok {
		c.Redirect.AllowHTTP = &v
	}
	if v, ok := getEnvBool("REDIRECT_ALLOW_IP_ADDRESSES"); ok {
		c.Redirect.AllowIPAddresses = v
	}
	if v, ok := getEnvBool("REDIRECT_VALIDATE_TENANT_EXISTS"); ok {
		c.Redirect.ValidateTenantExists = &v
	}
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
}
