package http

import (
	"net/http"
	"time"

	"github.com/plumeapp/plume/pkg/httpx"
	"github.com/plumeapp/plume/pkg/sessionsdk"
)

// LivezHandler is the liveness probe. It always returns 200 OK while the
// process is running.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := sessionsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		}
		httpx.WriteJSON(w, http.StatusOK, response)
	}
}
