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

// DeactivateHandler serves POST /v1/session/deactivate. Unlike the activity
// heartbeat, deactivating a session the server never heard of is a 404: the
// caller should know its sign-out did not land anywhere.
type DeactivateHandler struct {
	ActivityService *service.ActivityService
	Metrics         *metrics.Metrics
}

func (h *DeactivateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// 1. Ensure the right content-type
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		sessionsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	// 2. Decode and sanitize
	var req sessionsdk.DeactivateRequest
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

	// 3. Flip the record inactive
	found, err := h.ActivityService.Deactivate(ctx, sessionID)
	if err != nil {
		h.count("error")
		log.Error("deactivate failed", "err", err)
		sessionsdk.ErrServerError.WriteError(w)
		return
	}
	if !found {
		h.count("not_found")
		sessionsdk.ErrNotFound.WriteError(w)
		return
	}

	h.count("ok")
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, sessionsdk.DeactivateResponse{Deactivated: true})
}

func (h *DeactivateHandler) count(outcome string) {
	if h.Metrics != nil {
		h.Metrics.DeactivateTotal.WithLabelValues(outcome).Inc()
	}
}
