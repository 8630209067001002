package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/plumeapp/plume/internal/session/metrics"
	"github.com/plumeapp/plume/internal/session/service"
	"github.com/plumeapp/plume/pkg/httpx"
	"github.com/plumeapp/plume/pkg/sanitize"
	"github.com/plumeapp/plume/pkg/sessionsdk"
	"github.com/plumeapp/plume/pkg/slogx"
)

// SessionCookieName is the cookie fallback for callers that cannot set
// headers, e.g. top-level browser navigations.
const SessionCookieName = "plume_session"

// RequireSession gates a route behind a live session. The session ID comes
// from the X-Session-ID header, falling back to the plume_session cookie.
// On success the session ID, identity ID, and DID are placed on the request
// context for downstream handlers.
func RequireSession(verify *service.VerifyService, m *metrics.Metrics) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := r.Header.Get("X-Session-ID")
			if raw == "" {
				if c, err := r.Cookie(SessionCookieName); err == nil {
					raw = c.Value
				}
			}

			sessionID, ok := sanitize.SessionID(raw)
			if !ok {
				countVerify(m, "invalid")
				sessionsdk.ErrInvalidSession.WriteError(w)
				return
			}

			rec, ident, err := verify.VerifySession(ctx, sessionID)
			if err != nil {
				if errors.Is(err, service.ErrSessionInvalid) {
					countVerify(m, "invalid")
					sessionsdk.ErrInvalidSession.WriteError(w)
					return
				}
				countVerify(m, "error")
				log.Error("session verification failed", "err", err)
				sessionsdk.ErrServerError.WriteError(w)
				return
			}

			countVerify(m, "ok")
			ctx = context.WithValue(ctx, httpx.CtxKeySessionID, rec.SessionID)
			ctx = context.WithValue(ctx, httpx.CtxKeyIdentityID, ident.ID)
			ctx = context.WithValue(ctx, httpx.CtxKeyDID, ident.DID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func countVerify(m *metrics.Metrics, outcome string) {
	if m != nil {
		m.SessionVerifyTotal.WithLabelValues(outcome).Inc()
	}
}
