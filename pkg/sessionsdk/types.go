package sessionsdk

import "time"

// ============================================================================
// Wire Types - shared between the service handlers and the SDK client
// ============================================================================

// SyncRequest is the body of POST /v1/session/sync. The caller reports the
// identity it authenticated as and the local session it minted for it.
type SyncRequest struct {
	DID         string            `json:"did"`
	Handle      string            `json:"handle"`
	DisplayName string            `json:"displayName,omitempty"`
	Avatar      string            `json:"avatar,omitempty"`
	Description string            `json:"description,omitempty"`
	PDS         string            `json:"pds,omitempty"`
	SessionID   string            `json:"sessionId"`
	DeviceID    string            `json:"deviceId"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// IdentityPayload is the identity half of a sync response.
type IdentityPayload struct {
	ID          string    `json:"id"`
	DID         string    `json:"did"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"displayName,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	Description string    `json:"description,omitempty"`
	PDS         string    `json:"pds,omitempty"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SessionPayload is the session half of a sync response.
type SessionPayload struct {
	SessionID    string     `json:"sessionId"`
	DeviceID     string     `json:"deviceId"`
	UserID       string     `json:"userId"`
	LastActiveAt time.Time  `json:"lastActiveAt"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// SyncResponse is the body of a successful (or partially successful) sync.
// When the identity persisted but the session record did not, Session is nil
// and Warning explains; the caller may retry the sync to converge.
type SyncResponse struct {
	Identity *IdentityPayload `json:"identity"`
	Session  *SessionPayload  `json:"session,omitempty"`
	Warning  string           `json:"warning,omitempty"`
}

// ActivityRequest is the body of POST /v1/session/activity.
type ActivityRequest struct {
	SessionID    string    `json:"sessionId"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// ActivityResponse reports whether the timestamp landed. Updated is false
// when the session is unknown; that is not an error, just a signal the
// caller's local session has drifted from the server.
type ActivityResponse struct {
	Updated bool   `json:"updated"`
	Warning string `json:"warning,omitempty"`
}

// DeactivateRequest is the body of POST /v1/session/deactivate.
type DeactivateRequest struct {
	SessionID string `json:"sessionId"`
}

// DeactivateResponse acknowledges a deactivation.
type DeactivateResponse struct {
	Deactivated bool `json:"deactivated"`
}

// CurrentSessionResponse is the body of GET /v1/session/current.
type CurrentSessionResponse struct {
	Identity *IdentityPayload `json:"identity"`
	Session  *SessionPayload  `json:"session"`
}

// ============================================================================
// Client-Side Session Types - used by the Orchestrator
// ============================================================================

// ExternalSession is what an OAuth provider hands back after a completed
// sign-in: the resolved identity plus whatever token material the provider
// manages on our behalf.
type ExternalSession struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
	PDS    string `json:"pds,omitempty"`
}

// Profile is the optional enrichment fetched after sign-in. All fields may
// be empty; a failed profile fetch never fails a sign-in.
type Profile struct {
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Description string `json:"description,omitempty"`
}

// EnhancedSession is an ExternalSession enriched with the local bookkeeping
// the orchestrator maintains on top of the provider's session.
type EnhancedSession struct {
	ExternalSession

	Profile    Profile   `json:"profile"`
	SessionID  string    `json:"sessionId"`
	DeviceID   string    `json:"deviceId"`
	SignedInAt time.Time `json:"signedInAt"`
}

// AuthState is the payload carried through the OAuth redirect round-trip.
// It is serialized into the signed `state` parameter on the way out and
// recovered on callback.
type AuthState struct {
	// Ident is the handle or DID the user asked to sign in as.
	Ident string `json:"ident"`

	// Redirect is where to send the user after the callback completes.
	Redirect string `json:"redirect,omitempty"`

	// SessionID is the pre-minted local session ID, so the session identity
	// survives the redirect round-trip.
	SessionID string `json:"sessionId"`
}
