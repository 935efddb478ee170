// Package health contiene los DTOs de /readyz.
package health

import "time"

// HealthStatus es el estado de un componente.
type HealthStatus struct {
	Status  string `json:"status"`            // ok | error | disabled
	Message string `json:"message,omitempty"` // detalle opcional
}

// HealthResponse es la respuesta completa de /readyz.
type HealthResponse struct {
	Status      string                  `json:"status"` // ready | degraded | unavailable
	Components  map[string]HealthStatus `json:"components"`
	Version     string                  `json:"version,omitempty"`
	ActiveKeyID string                  `json:"active_key_id,omitempty"`
	Timestamp   time.Time               `json:"timestamp"`
}
