package middlewares

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/authvital/internal/claims"
	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
	"github.com/dropDatabas3/authvital/internal/metrics"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
	"github.com/dropDatabas3/authvital/internal/rate"
)

const testIssuer = "https://auth.example.com"

func newKeys(t *testing.T) *jwtx.LocalKeyService {
	t.Helper()
	sk, err := jwtx.GenerateSigningKey()
	require.NoError(t, err)
	return jwtx.NewLocalKeyService(jwtx.NewKeystore(sk))
}

func sign(t *testing.T, keys jwtx.KeyService, payload any, sub string) string {
	t.Helper()
	tok, err := keys.Sign(context.Background(), payload, jwtx.SignOptions{
		Subject:   sub,
		Audience:  "web",
		Issuer:    testIssuer,
		ExpiresIn: time.Minute,
	})
	require.NoError(t, err)
	return tok
}

func TestChain_Order(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := ChainFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "h") }, mk("a"), mk("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "h"}, order)
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}), WithRequestID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestWithRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), WithRecover())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "server_error")
}

func TestWithLogging_RecordsRoutePattern(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	defer logger.Replace(zap.New(core))()

	reg := prometheus.NewRegistry()
	m := metrics.NewRecorder(reg)

	r := chi.NewRouter()
	r.Use(WithRequestID(), WithLogging(m))
	r.Get("/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/xyz", nil))

	entries := logs.FilterMessage("request completed with client error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusNotFound), entries[0].ContextMap()["status"])

	expected := `
# HELP http_requests_total HTTP requests by method, route and status
# TYPE http_requests_total counter
http_requests_total{method="GET",route="/sessions/{id}",status="404"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"))
}

func TestWithRateLimit(t *testing.T) {
	lim := rate.NewMemoryLimiter(2, time.Minute)
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, _ = io.WriteString(w, r.PostForm.Get("client_id"))
	}), WithRateLimit(RateLimitConfig{Limiter: lim, Whitelist: []string{"/healthz"}}))

	post := func(clientID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader("grant_type=x&client_id="+clientID))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, post("web").Code)
	second := post("web")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "web", second.Body.String(), "form stays readable downstream")
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	third := post("web")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.NotEmpty(t, third.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, post("backend").Code, "keys are per client")

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestDefaultRateKey_JSONBodyPreserved(t *testing.T) {
	body := `{"client_id":"web","token":"abc"}`
	req := httptest.NewRequest(http.MethodPost, "/oauth/introspect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.9:1"

	assert.Equal(t, "10.0.0.9|/oauth/introspect|web", DefaultRateKey(req))
	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(rest))
}

func TestRequireBearer(t *testing.T) {
	keys := newKeys(t)
	var got *Principal
	h := Chain(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = GetPrincipal(r.Context())
	}), RequireBearer(keys, testIssuer))

	call := func(auth string) *httptest.ResponseRecorder {
		got = nil
		req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := call("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	assert.Equal(t, http.StatusUnauthorized, call("Bearer not-a-jwt").Code)

	refresh := sign(t, keys, claims.Refresh{TokenType: claims.TypeRefresh, SessionID: "s1"}, "u1")
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+refresh).Code)

	m2m := sign(t, keys, claims.M2M{TokenType: claims.TypeM2M, ClientID: "web"}, "app:web")
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+m2m).Code)

	access := sign(t, keys, claims.Access{TokenType: claims.TypeAccess, Scope: "openid profile", TenantID: "t1"}, "u1")
	rec = call("bearer " + access)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "web", got.ClientID)
	assert.Equal(t, "t1", got.TenantID)
}

func TestRequireScope(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), RequireScope("profile"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &Principal{UserID: "u1", Scope: "openid"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = req.WithContext(WithPrincipal(req.Context(), &Principal{UserID: "u1", Scope: "openid profile"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
