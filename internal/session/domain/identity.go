package domain

import "time"

// Identity is the server-side record of a decentralized identity that has
// signed in at least once. Identities are upserted on every successful
// sign-in or restore and are never hard-deleted; deactivation is a flag.
type Identity struct {
	ID          string // internal ULID, stable across handle changes
	DID         string // unique key; the decentralized identifier
	Handle      string // may change over time, not unique
	DisplayName string
	Avatar      string
	Description string
	PDS         string // the identity's personal data server URL
	LastSeenAt  time.Time
	Preferences string // opaque JSON, round-tripped untouched
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IdentityUpsert carries the mutable fields written on each sign-in. The
// created_at of an existing row is never touched.
type IdentityUpsert struct {
	DID         string
	Handle      string
	DisplayName string
	Avatar      string
	Description string
	PDS         string
	LastSeenAt  time.Time
}
