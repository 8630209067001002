package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plumeapp/plume/internal/session/domain"
	"github.com/plumeapp/plume/internal/session/store"
	"github.com/plumeapp/plume/pkg/slogx"
)

// ErrSessionPending reports the partial-failure outcome of a sync: the
// identity upsert landed but the session record write did not. The identity
// change is kept; the caller retries via the next activity tick or callback
// rather than failing authentication.
var ErrSessionPending = errors.New("service: identity synced, session record pending")

// SyncService is the single write path for "a client is now authenticated as
// DID X on session Y". Nothing else may create a SessionRecord.
type SyncService struct {
	Store store.Store

	// SessionTTL, when positive, stamps new session records with a fixed
	// expiry. Zero means sessions never expire on their own.
	SessionTTL time.Duration
}

// SyncInput is the validated tuple accepted by Sync. Callers are responsible
// for having run every field through the sanitizers first.
type SyncInput struct {
	DID         string
	Handle      string
	DisplayName string
	Avatar      string
	Description string
	PDS         string
	SessionID   string
	DeviceID    string
	Metadata    string
}

// SyncResult carries the rows as persisted. Session is zero-valued when the
// error is ErrSessionPending.
type SyncResult struct {
	Identity domain.Identity
	Session  domain.SessionRecord
}

// Sync makes the Identity and SessionRecord consistent with the input. The
// two upserts are deliberately not wrapped in a transaction: an identity
// write that survives a failed session write is the documented partial
// outcome, not a bug to roll back.
func (s *SyncService) Sync(ctx context.Context, in SyncInput) (SyncResult, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	ident, err := s.Store.Identities().UpsertIdentity(ctx, domain.IdentityUpsert{
		DID:         in.DID,
		Handle:      in.Handle,
		DisplayName: in.DisplayName,
		Avatar:      in.Avatar,
		Description: in.Description,
		PDS:         in.PDS,
		LastSeenAt:  now,
	})
	if err != nil {
		// No identity, no session: an orphan session row must never exist.
		return SyncResult{}, fmt.Errorf("upsert identity: %w", err)
	}

	var expiresAt *time.Time
	if s.SessionTTL > 0 {
		t := now.Add(s.SessionTTL)
		expiresAt = &t
	}

	rec, err := s.Store.Sessions().UpsertSession(ctx, domain.SessionUpsert{
		SessionID:    in.SessionID,
		DeviceID:     in.DeviceID,
		UserID:       ident.ID,
		LastActiveAt: now,
		ExpiresAt:    expiresAt,
		Metadata:     in.Metadata,
	})
	if err != nil {
		log.Warn("session record write failed after identity upsert",
			"did", in.DID,
			"err", err,
		)
		return SyncResult{Identity: ident}, ErrSessionPending
	}

	return SyncResult{Identity: ident, Session: rec}, nil
}
