package store

import (
	"context"
	"errors"
	"time"

	"github.com/plumeapp/plume/internal/session/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers (sqlite today,
// postgres if we ever outgrow it) implement this. It exposes sub-repositories
// to keep concerns tidy and testable.
type Store interface {
	Identities() Identities
	Sessions() Sessions

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Identities interface {
	// UpsertIdentity inserts the identity or, on DID conflict, updates the
	// mutable profile fields (handle, display name, avatar, description,
	// pds, last_seen_at) in a single atomic statement. created_at and the
	// internal row ID of an existing identity are untouched. Returns the
	// row as it stands after the write.
	UpsertIdentity(ctx context.Context, in domain.IdentityUpsert) (domain.Identity, error)

	// GetIdentityByDID returns an identity by its DID.
	GetIdentityByDID(ctx context.Context, did string) (domain.Identity, error)

	// GetIdentityByID returns an identity by its internal row ID.
	GetIdentityByID(ctx context.Context, id string) (domain.Identity, error)

	// DeactivateIdentity flips is_active off. Identities are never deleted.
	// Returns false if no identity with that DID exists.
	DeactivateIdentity(ctx context.Context, did string) (bool, error)
}

type Sessions interface {
	// UpsertSession inserts the session record or, on session_id conflict,
	// updates last_active_at and metadata only, as a single atomic
	// statement. Ownership (user_id, device_id) of an existing record is
	// never reassigned. Returns the row as it stands after the write.
	UpsertSession(ctx context.Context, in domain.SessionUpsert) (domain.SessionRecord, error)

	// GetSession returns a session record regardless of its active flag.
	GetSession(ctx context.Context, sessionID string) (domain.SessionRecord, error)

	// FindActiveSession returns the record only if is_active is still set.
	// Expiry is the caller's concern; it is checked lazily at verification.
	FindActiveSession(ctx context.Context, sessionID string) (domain.SessionRecord, error)

	// UpdateSessionActivity moves last_active_at forward, monotonically: a
	// timestamp older than the stored one leaves the row unchanged. Returns
	// found=false when no such session exists.
	UpdateSessionActivity(ctx context.Context, sessionID string, ts time.Time) (bool, error)

	// DeactivateSession flips is_active off. Returns found=false when no
	// such session exists. Calling it twice is harmless.
	DeactivateSession(ctx context.Context, sessionID string) (bool, error)

	// DeleteInactiveSessionsBefore removes deactivated rows whose last
	// activity predates the cutoff. Housekeeping only; never used to
	// enforce expiry.
	DeleteInactiveSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
