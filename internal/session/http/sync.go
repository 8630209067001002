package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/elnormous/contenttype"
	"github.com/plumeapp/plume/internal/session/domain"
	"github.com/plumeapp/plume/internal/session/metrics"
	"github.com/plumeapp/plume/internal/session/service"
	"github.com/plumeapp/plume/pkg/httpx"
	"github.com/plumeapp/plume/pkg/sanitize"
	"github.com/plumeapp/plume/pkg/sessionsdk"
	"github.com/plumeapp/plume/pkg/slogx"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// SyncHandler serves POST /v1/session/sync. It validates and sanitizes the
// reported identity and session, then upserts both. A session write failure
// after the identity landed still returns 200, with the session omitted and
// a warning set, so the caller can retry to converge.
type SyncHandler struct {
	SyncService *service.SyncService
	Metrics     *metrics.Metrics
}

func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// 1. Ensure the right content-type
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		sessionsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	// 2. Decode the body
	var req sessionsdk.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.count("invalid")
		sessionsdk.ErrValidationFailed.WriteError(w)
		return
	}

	// 3. Sanitize every field; collect all issues rather than stopping at
	// the first so the caller can fix the payload in one round-trip
	input, issues := h.sanitizeRequest(&req)
	if len(issues) > 0 {
		h.count("invalid")
		log.Warn("sync rejected", "issues", len(issues))
		sessionsdk.ErrValidationFailed.WithFields(issues).WriteError(w)
		return
	}

	// 4. Upsert identity and session
	result, err := h.SyncService.Sync(ctx, input)
	if err != nil && !errors.Is(err, service.ErrSessionPending) {
		h.count("error")
		log.Error("sync failed", "err", err)
		sessionsdk.ErrServerError.WriteError(w)
		return
	}

	resp := sessionsdk.SyncResponse{
		Identity: identityPayload(result.Identity),
	}
	if errors.Is(err, service.ErrSessionPending) {
		h.count("pending")
		resp.Warning = "identity saved but the session record is pending, retry sync to converge"
	} else {
		h.count("ok")
		resp.Session = sessionPayload(result.Session)
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *SyncHandler) sanitizeRequest(req *sessionsdk.SyncRequest) (service.SyncInput, map[string]string) {
	issues := make(map[string]string)

	did, ok := sanitize.DID(req.DID)
	if !ok {
		issues["did"] = "must be a valid did:plc or did:web identifier"
	}
	handle, ok := sanitize.Handle(req.Handle)
	if !ok {
		issues["handle"] = "must be a valid handle"
	}
	sessionID, ok := sanitize.SessionID(req.SessionID)
	if !ok {
		issues["sessionId"] = "must look like sess_<id>"
	}
	deviceID, ok := sanitize.DeviceID(req.DeviceID)
	if !ok {
		issues["deviceId"] = "must look like dev_<id>"
	}

	pds := ""
	if req.PDS != "" {
		p, ok := sanitize.URL(req.PDS)
		if !ok {
			issues["pds"] = "must be an http(s) URL"
		}
		pds = p
	}

	avatar := ""
	if req.Avatar != "" {
		a, ok := sanitize.URL(req.Avatar)
		if !ok {
			issues["avatar"] = "must be an http(s) URL"
		}
		avatar = a
	}

	metadata := ""
	if len(req.Metadata) > 0 {
		clean := make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			clean[sanitize.Text(k)] = sanitize.Text(v)
		}
		raw, _ := json.Marshal(clean)
		metadata = string(raw)
	}

	input := service.SyncInput{
		DID:         did,
		Handle:      handle,
		DisplayName: sanitize.Text(req.DisplayName),
		Avatar:      avatar,
		Description: sanitize.Text(req.Description),
		PDS:         pds,
		SessionID:   sessionID,
		DeviceID:    deviceID,
		Metadata:    metadata,
	}
	return input, issues
}

func (h *SyncHandler) count(outcome string) {
	if h.Metrics != nil {
		h.Metrics.SyncTotal.WithLabelValues(outcome).Inc()
	}
}

func identityPayload(ident domain.Identity) *sessionsdk.IdentityPayload {
	return &sessionsdk.IdentityPayload{
		ID:          ident.ID,
		DID:         ident.DID,
		Handle:      ident.Handle,
		DisplayName: ident.DisplayName,
		Avatar:      ident.Avatar,
		Description: ident.Description,
		PDS:         ident.PDS,
		LastSeenAt:  ident.LastSeenAt,
		CreatedAt:   ident.CreatedAt,
	}
}

func sessionPayload(rec domain.SessionRecord) *sessionsdk.SessionPayload {
	return &sessionsdk.SessionPayload{
		SessionID:    rec.SessionID,
		DeviceID:     rec.DeviceID,
		UserID:       rec.UserID,
		LastActiveAt: rec.LastActiveAt,
		ExpiresAt:    rec.ExpiresAt,
		CreatedAt:    rec.CreatedAt,
	}
}
