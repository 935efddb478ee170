// Package health contiene el service de /readyz.
package health

import (
	"context"
	"fmt"
	"time"

	dto "github.com/dropDatabas3/authvital/internal/http/dto/health"
	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// Deps contiene las dependencias del health service.
type Deps struct {
	Keys       jwtx.KeyService
	Issuer     string
	Version    string
	DBCheck    func(ctx context.Context) error // nil = backend memory
	CacheCheck func(ctx context.Context) error
}

type healthService struct {
	deps Deps
}

// NewHealthService crea el service.
func NewHealthService(deps Deps) HealthService {
	return &healthService{deps: deps}
}

const componentHealth = "health"

func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentHealth),
		logger.Op("Check"),
	)

	resp := dto.HealthResponse{
		Components: make(map[string]dto.HealthStatus),
		Version:    s.deps.Version,
		Timestamp:  time.Now().UTC(),
	}
	critical, degraded := false, false

	// Keystore (crítico): sin firma no hay tokens.
	if s.deps.Keys == nil {
		resp.Components["keystore"] = dto.HealthStatus{Status: "error", Message: "key service not initialized"}
		critical = true
	} else if kid, err := s.checkKeystore(ctx); err != nil {
		resp.Components["keystore"] = dto.HealthStatus{Status: "error", Message: err.Error()}
		critical = true
		log.Error("keystore check failed", logger.Err(err))
	} else {
		resp.ActiveKeyID = kid
		resp.Components["keystore"] = dto.HealthStatus{Status: "ok"}
	}

	// DB (crítico si está configurada).
	if s.deps.DBCheck == nil {
		resp.Components["db"] = dto.HealthStatus{Status: "disabled", Message: "memory store"}
	} else if err := s.deps.DBCheck(ctx); err != nil {
		resp.Components["db"] = dto.HealthStatus{Status: "error", Message: fmt.Sprintf("unavailable: %v", err)}
		critical = true
		log.Error("db unavailable", logger.Err(err))
	} else {
		resp.Components["db"] = dto.HealthStatus{Status: "ok"}
	}

	// Cache (no crítico: afecta redirect tokens y rate limit).
	if s.deps.CacheCheck == nil {
		resp.Components["cache"] = dto.HealthStatus{Status: "disabled"}
	} else if err := s.deps.CacheCheck(ctx); err != nil {
		resp.Components["cache"] = dto.HealthStatus{Status: "error", Message: fmt.Sprintf("unavailable: %v", err)}
		degraded = true
		log.Warn("cache unavailable", logger.Err(err))
	} else {
		resp.Components["cache"] = dto.HealthStatus{Status: "ok"}
	}

	switch {
	case critical:
		resp.Status = "unavailable"
	case degraded:
		resp.Status = "degraded"
	default:
		resp.Status = "ready"
	}
	return resp
}

// checkKeystore firma y verifica un token efímero con la clave activa.
func (s *healthService) checkKeystore(ctx context.Context) (string, error) {
	key, err := s.deps.Keys.ActiveKey(ctx)
	if err != nil {
		return "", fmt.Errorf("no active key: %w", err)
	}
	signed, err := s.deps.Keys.Sign(ctx, map[string]any{"token_type": "selfcheck"}, jwtx.SignOptions{
		Subject:   "selfcheck",
		Audience:  "health",
		Issuer:    s.deps.Issuer,
		ExpiresIn: time.Minute,
	})
	if err != nil {
		return "", fmt.Errorf("sign failed: %w", err)
	}
	if err := s.deps.Keys.Verify(ctx, signed, s.deps.Issuer, nil); err != nil {
		return "", fmt.Errorf("verify failed: %w", err)
	}
	return key.KID, nil
}
