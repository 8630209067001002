package domain

import "time"

// SessionRecord is the durable server-side record of one authenticated
// browser session. Created on first sync, updated in place on activity
// ticks, and logically (never physically) deleted on sign-out.
type SessionRecord struct {
	SessionID    string // unique key, "sess_"-prefixed opaque token
	DeviceID     string // "dev_"-prefixed, stable across sign-outs
	UserID       string // owning Identity.ID
	LastActiveAt time.Time
	ExpiresAt    *time.Time // nil means no fixed expiry
	Metadata     string     // opaque JSON
	IsActive     bool
	CreatedAt    time.Time
}

// Expired reports whether the session has a fixed expiry in the past.
// Expiry is only ever enforced lazily at verification time.
func (s SessionRecord) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// SessionUpsert carries the fields written when a session is synchronized.
// On conflict only last_active_at and metadata move; device and user
// ownership of an existing session_id is never reassigned.
type SessionUpsert struct {
	SessionID    string
	DeviceID     string
	UserID       string
	LastActiveAt time.Time
	ExpiresAt    *time.Time
	Metadata     string
}
