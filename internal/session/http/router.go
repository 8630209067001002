package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/plumeapp/plume/internal/session/metrics"
	"github.com/plumeapp/plume/internal/session/service"
	"github.com/plumeapp/plume/internal/session/store"
	"github.com/plumeapp/plume/pkg/httpx"
	"github.com/plumeapp/plume/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	metrics      *metrics.Metrics

	store           store.Store
	SyncService     *service.SyncService
	ActivityService *service.ActivityService
	VerifyService   *service.VerifyService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		metrics:      m,
		store:        st,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.metrics == nil {
		httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
		return
	}

	// Label by registered route pattern, not the raw path, to keep the
	// metric cardinality bounded
	_, route := r.Mux.Handler(req)
	if route == "" {
		route = "unmatched"
	}

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(rec, req)

	r.metrics.HTTPRequestDuration.
		WithLabelValues(route, fmt.Sprintf("%dxx", rec.status/100)).
		Observe(time.Since(start).Seconds())
}

func (r *Router) registerSession() {
	// POST /sync - strict rate limit, this is the sign-in write path
	syncHandler := &SyncHandler{
		SyncService: r.SyncService,
		Metrics:     r.metrics,
	}
	r.Mux.Handle("POST /v1/session/sync",
		httpx.Chain(syncHandler,
			r.rateLimit(httpx.SyncLimit, "sync"),
		),
	)

	// POST /activity - heartbeat path, per-IP but with a looser window than
	// sync since every signed-in client pings this continuously
	activityHandler := &ActivityHandler{
		ActivityService: r.ActivityService,
		Metrics:         r.metrics,
	}
	r.Mux.Handle("POST /v1/session/activity",
		httpx.Chain(activityHandler,
			r.rateLimit(httpx.ActivityLimit, "activity"),
		),
	)

	// POST /deactivate - sign-out path, general limit
	deactivateHandler := &DeactivateHandler{
		ActivityService: r.ActivityService,
		Metrics:         r.metrics,
	}
	r.Mux.Handle("POST /v1/session/deactivate",
		httpx.Chain(deactivateHandler,
			r.rateLimit(httpx.GeneralLimit, "general"),
		),
	)

	// GET /current - requires a valid session, general limit
	currentHandler := &CurrentHandler{
		VerifyService: r.VerifyService,
	}
	r.Mux.Handle("GET /v1/session/current",
		httpx.Chain(currentHandler,
			RequireSession(r.VerifyService, r.metrics),
			r.rateLimit(httpx.GeneralLimit, "general"),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
	r.Mux.Handle("GET /metrics", r.metrics.Handler())
}

// rateLimit wraps the shared limiter middleware so denials get counted per
// route profile.
func (r *Router) rateLimit(config httpx.RateLimitConfig, profile string) httpx.Middleware {
	limit := httpx.RateLimitByIP(config)
	if r.metrics == nil {
		return limit
	}
	return func(next http.Handler) http.Handler {
		inner := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			inner.ServeHTTP(rec, req)
			if rec.status == http.StatusTooManyRequests {
				r.metrics.RateLimitDenials.WithLabelValues(profile).Inc()
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
