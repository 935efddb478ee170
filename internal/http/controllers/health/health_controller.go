// Package health contiene el controller de health checks.
package health

import (
	"net/http"

	httperrors "github.com/dropDatabas3/authvital/internal/http/errors"
	svc "github.com/dropDatabas3/authvital/internal/http/services/health"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

// HealthController maneja /healthz y /readyz.
type HealthController struct {
	service svc.HealthService
}

// NewHealthController crea el controller.
func NewHealthController(service svc.HealthService) *HealthController {
	return &HealthController{service: service}
}

// Healthz es el liveness: responde mientras el proceso atienda.
func (c *HealthController) Healthz(w http.ResponseWriter, _ *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz maneja GET /readyz. 503 solo si un componente crítico falla.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := c.service.Check(ctx)

	if resp.Version != "" {
		w.Header().Set("X-Service-Version", resp.Version)
	}
	if resp.ActiveKeyID != "" {
		w.Header().Set("X-JWKS-KID", resp.ActiveKeyID)
	}

	status := http.StatusOK
	if resp.Status == "unavailable" {
		status = http.StatusServiceUnavailable
	}
	logger.From(ctx).Debug("health check completed",
		logger.Op("HealthController.Readyz"),
		logger.String("status", resp.Status),
	)
	httperrors.WriteJSON(w, status, resp)
}
