package sessionsdk_test

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/plumeapp/plume/pkg/sessionsdk"
	"github.com/stretchr/testify/require"
)

var reDeviceID = regexp.MustCompile(`^dev_[0-9a-z]{21}$`)

func testSession() *sessionsdk.EnhancedSession {
	return &sessionsdk.EnhancedSession{
		ExternalSession: sessionsdk.ExternalSession{
			DID:    "did:plc:abc123",
			Handle: "alice.example.social",
		},
		SessionID:  "sess_0123456789abcdefghijk",
		DeviceID:   "dev_0123456789abcdefghijk",
		SignedInAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestFileDeviceStore_DeviceIDIsStable(t *testing.T) {
	store, err := sessionsdk.NewFileDeviceStore(t.TempDir())
	require.NoError(t, err)

	first, err := store.DeviceID()
	require.NoError(t, err)
	require.Regexp(t, reDeviceID, first)

	second, err := store.DeviceID()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestFileDeviceStore_SessionRoundTrip(t *testing.T) {
	store, err := sessionsdk.NewFileDeviceStore(t.TempDir())
	require.NoError(t, err)

	// Empty store has no session
	loaded, err := store.LoadSession()
	require.NoError(t, err)
	require.Nil(t, loaded)

	sess := testSession()
	require.NoError(t, store.SaveSession(sess))

	loaded, err = store.LoadSession()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, sess.DID, loaded.DID)
	require.Equal(t, sess.SessionID, loaded.SessionID)

	require.NoError(t, store.ClearSession())

	loaded, err = store.LoadSession()
	require.NoError(t, err)
	require.Nil(t, loaded)

	// Clearing twice is harmless
	require.NoError(t, store.ClearSession())
}

func TestFileDeviceStore_CorruptSessionFileIsJustEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := sessionsdk.NewFileDeviceStore(dir)
	require.NoError(t, err)

	require.NoError(t,
		os.WriteFile(filepath.Join(dir, "session.json"), []byte("{truncated"), 0o600))

	loaded, err := store.LoadSession()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestMemoryDeviceStore_RoundTrip(t *testing.T) {
	store := sessionsdk.NewMemoryDeviceStore()

	id, err := store.DeviceID()
	require.NoError(t, err)
	require.Regexp(t, reDeviceID, id)

	sess := testSession()
	require.NoError(t, store.SaveSession(sess))

	loaded, err := store.LoadSession()
	require.NoError(t, err)
	require.Equal(t, sess.SessionID, loaded.SessionID)

	// Mutating the loaded copy must not leak back into the store
	loaded.SessionID = "sess_mutated"
	again, err := store.LoadSession()
	require.NoError(t, err)
	require.Equal(t, sess.SessionID, again.SessionID)

	require.NoError(t, store.ClearSession())
	loaded, err = store.LoadSession()
	require.NoError(t, err)
	require.Nil(t, loaded)
}
