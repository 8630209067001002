package http

import (
	"net/http"

	"github.com/plumeapp/plume/internal/session/service"
	"github.com/plumeapp/plume/pkg/httpx"
	"github.com/plumeapp/plume/pkg/sessionsdk"
	"github.com/plumeapp/plume/pkg/slogx"
)

// CurrentHandler serves GET /v1/session/current. Runs behind RequireSession,
// so a request reaching here always carries a verified session ID.
type CurrentHandler struct {
	VerifyService *service.VerifyService
}

func (h *CurrentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	sessionID, _ := ctx.Value(httpx.CtxKeySessionID).(string)
	if sessionID == "" {
		sessionsdk.ErrInvalidSession.WriteError(w)
		return
	}

	rec, ident, err := h.VerifyService.VerifySession(ctx, sessionID)
	if err != nil {
		// The gateway verified moments ago; any failure now is a race with
		// deactivation or expiry.
		log.Warn("session vanished between gateway and handler", "err", err)
		sessionsdk.ErrInvalidSession.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, sessionsdk.CurrentSessionResponse{
		Identity: identityPayload(ident),
		Session:  sessionPayload(rec),
	})
}
