package http

import (
	"encoding/json"
	"net/http"

	"github.com/elnormous/contenttype"
	"github.com/plumeapp/plume/internal/session/metrics"
	"github.com/plumeapp/plume/internal/session/service"
	"github.com/plumeapp/plume/pkg/httpx"
	"github.com/plumeapp/plume/pkg/sanitize"
	"github.com/plumeapp/plume/pkg/sessionsdk"
	"github.com/plumeapp/plume/pkg/slogx"
)

// ActivityHandler serves POST /v1/session/activity. A heartbeat against an
// unknown session returns 200 with updated=false and a warning rather than
// an error, so a ping that raced ahead of the initial sync cannot break the
// caller's auth flow.
type ActivityHandler struct {
	ActivityService *service.ActivityService
	Metrics         *metrics.Metrics
}

func (h *ActivityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// 1. Ensure the right content-type
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		sessionsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	// 2. Decode and sanitize
	var req sessionsdk.ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.count("invalid")
		sessionsdk.ErrValidationFailed.WriteError(w)
		return
	}

	sessionID, ok := sanitize.SessionID(req.SessionID)
	if !ok {
		h.count("invalid")
		sessionsdk.ErrValidationFailed.WithFields(map[string]string{
			"sessionId": "must look like sess_<id>",
		}).WriteError(w)
		return
	}
	if req.LastActiveAt.IsZero() {
		h.count("invalid")
		sessionsdk.ErrValidationFailed.WithFields(map[string]string{
			"lastActiveAt": "must be an RFC 3339 timestamp",
		}).WriteError(w)
		return
	}

	// 3. Move last_active_at forward; stale timestamps are swallowed
	found, err := h.ActivityService.UpdateActivity(ctx, sessionID, req.LastActiveAt.UTC())
	if err != nil {
		h.count("error")
		log.Error("activity update failed", "err", err)
		sessionsdk.ErrServerError.WriteError(w)
		return
	}

	resp := sessionsdk.ActivityResponse{Updated: found}
	if found {
		h.count("ok")
	} else {
		h.count("missing")
		resp.Warning = "session is not known to the server, re-sync to converge"
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *ActivityHandler) count(outcome string) {
	if h.Metrics != nil {
		h.Metrics.ActivityTotal.WithLabelValues(outcome).Inc()
	}
}
