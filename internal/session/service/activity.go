package service

import (
	"context"
	"time"

	"github.com/plumeapp/plume/internal/session/store"
	"github.com/plumeapp/plume/pkg/cryptox"
	"github.com/plumeapp/plume/pkg/slogx"
)

// ActivityService owns the last_active_at lifecycle of session records.
type ActivityService struct {
	Store store.Store
}

// UpdateActivity moves a session's last_active_at forward. The update is
// idempotent and monotonic (the store swallows stale timestamps). A missing
// session is logged and reported as found=false but is NOT an error: an
// activity ping racing ahead of the initial sync must never break the
// caller's auth flow.
func (s *ActivityService) UpdateActivity(
	ctx context.Context,
	sessionID string,
	ts time.Time,
) (found bool, err error) {
	found, err = s.Store.Sessions().UpdateSessionActivity(ctx, sessionID, ts)
	if err != nil {
		return false, err
	}

	if !found {
		// Log only a fingerprint; session identifiers are bearer-adjacent
		// and stay out of log lines
		slogx.FromContext(ctx).Warn("activity update for unknown session",
			"session_fp", cryptox.FingerprintToken(sessionID),
		)
	}

	return found, nil
}

// Deactivate flips a session's is_active flag off. A missing record is a
// distinct not-found outcome, never a server error: sign-out must not be
// blocked because the record was never synced.
func (s *ActivityService) Deactivate(ctx context.Context, sessionID string) (found bool, err error) {
	return s.Store.Sessions().DeactivateSession(ctx, sessionID)
}
