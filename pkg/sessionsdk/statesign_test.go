package sessionsdk_test

import (
	"testing"
	"time"

	"github.com/plumeapp/plume/pkg/sessionsdk"
	"github.com/stretchr/testify/require"
)

var testMaster = []byte("0123456789abcdef0123456789abcdef")

func TestStateSigner_RoundTrip(t *testing.T) {
	signer, err := sessionsdk.NewStateSigner(testMaster, 0)
	require.NoError(t, err)

	in := sessionsdk.AuthState{
		Ident:     "alice.example.social",
		Redirect:  "/write",
		SessionID: "sess_0123456789abcdefghijk",
	}

	token, err := signer.Sign(in)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	out, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestStateSigner_RejectsGarbage(t *testing.T) {
	signer, err := sessionsdk.NewStateSigner(testMaster, 0)
	require.NoError(t, err)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		_, err := signer.Parse(raw)
		require.ErrorIs(t, err, sessionsdk.ErrStateInvalid)
	}
}

func TestStateSigner_RejectsOtherKey(t *testing.T) {
	signer1, err := sessionsdk.NewStateSigner(testMaster, 0)
	require.NoError(t, err)
	signer2, err := sessionsdk.NewStateSigner([]byte("another-master-secret-entirely!!"), 0)
	require.NoError(t, err)

	token, err := signer1.Sign(sessionsdk.AuthState{SessionID: "sess_a"})
	require.NoError(t, err)

	_, err = signer2.Parse(token)
	require.ErrorIs(t, err, sessionsdk.ErrStateInvalid)
}

func TestStateSigner_RejectsExpired(t *testing.T) {
	signer, err := sessionsdk.NewStateSigner(testMaster, time.Nanosecond)
	require.NoError(t, err)

	token, err := signer.Sign(sessionsdk.AuthState{SessionID: "sess_a"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = signer.Parse(token)
	require.ErrorIs(t, err, sessionsdk.ErrStateInvalid)
}
