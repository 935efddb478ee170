package middlewares

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/authvital/internal/metrics"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

// statusRecorder captura status y bytes escritos.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// WithLogging inyecta un logger scoped (request_id, method, path) en el
// contexto, loguea el resultado de cada request y lo registra en rec.
// rec puede ser nil.
func WithLogging(rec *metrics.Recorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLog := logger.L().With(
				logger.RequestID(GetRequestID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.ClientIP(clientIP(r)),
			)
			reqLog.Debug("request started", logger.UserAgent(r.UserAgent()))

			ctx := logger.ToContext(r.Context(), reqLog)
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sr, r.WithContext(ctx))

			dur := time.Since(start)
			rec.HTTP(r.Method, routePattern(r), sr.status, dur)

			switch {
			case sr.status >= 500:
				reqLog.Error("request failed",
					logger.Status(sr.status),
					logger.Bytes(sr.bytes),
					logger.DurationMs(dur.Milliseconds()),
				)
			case sr.status >= 400:
				reqLog.Warn("request completed with client error",
					logger.Status(sr.status),
					logger.Bytes(sr.bytes),
					logger.DurationMs(dur.Milliseconds()),
				)
			default:
				reqLog.Info("request completed",
					logger.Status(sr.status),
					logger.Bytes(sr.bytes),
					logger.DurationMs(dur.Milliseconds()),
				)
			}
		})
	}
}

// routePattern usa el patrón de chi para no explotar la cardinalidad de labels.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
