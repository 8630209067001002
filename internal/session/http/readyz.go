package http

import (
	"net/http"
	"time"

	"github.com/plumeapp/plume/internal/session/store"
	"github.com/plumeapp/plume/pkg/httpx"
	"github.com/plumeapp/plume/pkg/sessionsdk"
)

// ReadyzHandler is the readiness probe. It checks database connectivity and
// returns 503 when the service cannot serve traffic.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &sessionsdk.HealthChecks{
			Database: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		// Check database connectivity
		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := sessionsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
