package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/plumeapp/plume/pkg/idx"
)

// HTTPMiddleware logs requests and attaches a contextual logger into request
// context. Session identifiers never appear here; handlers decide what is
// safe to log.
func HTTPMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			// Honor X-Request-ID only when it is a well-formed ULID; anything
			// else (missing, garbage, log-injection attempts) gets replaced
			reqID := r.Header.Get("X-Request-ID")
			if _, err := idx.Parse(reqID); err != nil {
				reqID = idx.New().String()
			}

			logger := base.With(
				"req_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			ctx := WithContext(r.Context(), logger)
			r = r.WithContext(ctx)

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Milliseconds()
			logger.Info("http_request",
				"status", rw.status,
				"duration_ms", duration,
				"user_agent", r.UserAgent(),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter

	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
