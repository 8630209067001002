package service

import (
	"context"
	"errors"
	"time"

	"github.com/plumeapp/plume/internal/session/domain"
	"github.com/plumeapp/plume/internal/session/store"
)

// ErrSessionInvalid covers every rejection the gateway cares about: the
// session is absent, deactivated, or past its expiry. Callers get one signal,
// not a taxonomy an attacker could probe.
var ErrSessionInvalid = errors.New("service: session invalid")

// VerifyService answers the gateway question: does this session identifier
// name a live session, and who owns it?
type VerifyService struct {
	Store store.Store
}

// VerifySession looks up an active session record and checks expiry lazily
// against the current clock. There is no background expiry sweep; a session
// past its expires_at simply fails its next verification.
func (s *VerifyService) VerifySession(
	ctx context.Context,
	sessionID string,
) (domain.SessionRecord, domain.Identity, error) {
	rec, err := s.Store.Sessions().FindActiveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SessionRecord{}, domain.Identity{}, ErrSessionInvalid
		}
		return domain.SessionRecord{}, domain.Identity{}, err
	}

	if rec.Expired(time.Now()) {
		return domain.SessionRecord{}, domain.Identity{}, ErrSessionInvalid
	}

	ident, err := s.Store.Identities().GetIdentityByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// A session without its identity should be impossible (FK), but
			// if it happens the session is not trustworthy.
			return domain.SessionRecord{}, domain.Identity{}, ErrSessionInvalid
		}
		return domain.SessionRecord{}, domain.Identity{}, err
	}

	return rec, ident, nil
}
