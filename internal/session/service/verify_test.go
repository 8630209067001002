package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/plumeapp/plume/internal/session/domain"
	"github.com/plumeapp/plume/internal/session/service"
	"github.com/plumeapp/plume/internal/session/store"
	"github.com/stretchr/testify/require"
)

func TestVerifySession_ActiveUnexpired(t *testing.T) {
	st := &stubStore{}
	st.sessions.record = domain.SessionRecord{
		SessionID: "sess_0123456789abcdefghijk",
		UserID:    "ident-1",
		IsActive:  true,
	}
	st.identities.identity = domain.Identity{ID: "ident-1", DID: "did:plc:abc123"}

	svc := &service.VerifyService{Store: st}

	rec, ident, err := svc.VerifySession(context.Background(), "sess_0123456789abcdefghijk")
	require.NoError(t, err)
	require.Equal(t, "sess_0123456789abcdefghijk", rec.SessionID)
	require.Equal(t, "did:plc:abc123", ident.DID)
}

func TestVerifySession_UnknownSession(t *testing.T) {
	st := &stubStore{}
	st.sessions.findErr = store.ErrNotFound

	svc := &service.VerifyService{Store: st}

	_, _, err := svc.VerifySession(context.Background(), "sess_unknown")
	require.ErrorIs(t, err, service.ErrSessionInvalid)
}

func TestVerifySession_ExpiredLazily(t *testing.T) {
	// The store still returns the row; expiry is only enforced here, at
	// verification time
	past := time.Now().Add(-time.Minute)
	st := &stubStore{}
	st.sessions.record = domain.SessionRecord{
		SessionID: "sess_0123456789abcdefghijk",
		UserID:    "ident-1",
		IsActive:  true,
		ExpiresAt: &past,
	}

	svc := &service.VerifyService{Store: st}

	_, _, err := svc.VerifySession(context.Background(), "sess_0123456789abcdefghijk")
	require.ErrorIs(t, err, service.ErrSessionInvalid)
}

func TestVerifySession_NoExpiryNeverExpires(t *testing.T) {
	st := &stubStore{}
	st.sessions.record = domain.SessionRecord{
		SessionID: "sess_0123456789abcdefghijk",
		UserID:    "ident-1",
		IsActive:  true,
	}
	st.identities.identity = domain.Identity{ID: "ident-1"}

	svc := &service.VerifyService{Store: st}

	_, _, err := svc.VerifySession(context.Background(), "sess_0123456789abcdefghijk")
	require.NoError(t, err)
}
