// Package metrics define las métricas Prometheus del servidor.
//
// Recorder no usa globals: cada proceso (o test) crea el suyo sobre un
// Registerer. Todos los métodos aceptan receptor nil, así los services
// funcionan sin métricas.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resultados de grant.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder agrupa los collectors.
type Recorder struct {
	grants          *prometheus.CounterVec
	refreshRotation *prometheus.CounterVec
	codeReplays     prometheus.Counter
	issueDuration   *prometheus.HistogramVec
	revocations     *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewRecorder registra los collectors en reg. Si reg es nil usa un registry nuevo.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authvital_token_grants_total",
			Help: "Token endpoint grants by type and result",
		}, []string{"grant_type", "result"}),
		refreshRotation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authvital_refresh_rotations_total",
			Help: "Refresh session rotations by result",
		}, []string{"result"}),
		codeReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authvital_code_replays_total",
			Help: "Authorization code reuse attempts",
		}),
		issueDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authvital_token_issue_duration_seconds",
			Help:    "Time spent issuing tokens, claims enrichment included",
			Buckets: prometheus.DefBuckets,
		}, []string{"grant_type"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authvital_session_revocations_total",
			Help: "Refresh sessions revoked by reason",
		}, []string{"reason"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: reg,
	}
	reg.MustRegister(r.grants, r.refreshRotation, r.codeReplays, r.issueDuration,
		r.revocations, r.httpRequests, r.httpDuration)
	return r
}

// Handler expone /metrics.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

func (r *Recorder) Grant(grantType, result string) {
	if r == nil {
		return
	}
	r.grants.WithLabelValues(grantType, result).Inc()
}

func (r *Recorder) RefreshRotation(result string) {
	if r == nil {
		return
	}
	r.refreshRotation.WithLabelValues(result).Inc()
}

func (r *Recorder) CodeReplay() {
	if r == nil {
		return
	}
	r.codeReplays.Inc()
}

// Revoked suma n sesiones revocadas por reason (rotation, replay, logout, revoke).
func (r *Recorder) Revoked(reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.revocations.WithLabelValues(reason).Add(float64(n))
}

// ObserveIssue mide desde start.
func (r *Recorder) ObserveIssue(grantType string, start time.Time) {
	if r == nil {
		return
	}
	r.issueDuration.WithLabelValues(grantType).Observe(time.Since(start).Seconds())
}

// HTTP registra un request terminado.
func (r *Recorder) HTTP(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
