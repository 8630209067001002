package cryptox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	master := []byte("0123456789abcdef0123456789abcdef")

	key1, err := DeriveKey(master, "state-signing", 32)
	require.NoError(t, err)
	require.Len(t, key1, 32)

	// Same inputs, same key
	key1b, err := DeriveKey(master, "state-signing", 32)
	require.NoError(t, err)
	require.Equal(t, key1, key1b)

	// Different info, different key
	key2, err := DeriveKey(master, "something-else", 32)
	require.NoError(t, err)
	require.NotEqual(t, key1, key2)
}

func TestDeriveKey_InvalidInputs(t *testing.T) {
	_, err := DeriveKey(nil, "info", 32)
	require.Error(t, err)

	_, err = DeriveKey([]byte("master"), "info", 0)
	require.Error(t, err)
}

func TestLoadOrCreateMasterSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "master")

	secret, err := LoadOrCreateMasterSecret(path)
	require.NoError(t, err)
	require.Len(t, secret, masterSecretLength)

	// Second load returns the same secret, not a fresh one
	again, err := LoadOrCreateMasterSecret(path)
	require.NoError(t, err)
	require.Equal(t, secret, again)
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	token2, err := GenerateToken(TokenSize256)
	require.NoError(t, err)
	require.NotEqual(t, token, token2, "tokens should be unique")
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	_, err := GenerateToken(0)
	require.Error(t, err)

	_, err = GenerateToken(-1)
	require.Error(t, err)
}

func TestFingerprintToken(t *testing.T) {
	fp1a := FingerprintToken("token-1")
	fp1b := FingerprintToken("token-1")
	fp2 := FingerprintToken("token-2")

	require.Equal(t, fp1a, fp1b, "fingerprint should be deterministic")
	require.NotEqual(t, fp1a, fp2)
	require.Len(t, fp1a, 43, "SHA-256 base64url should be 43 chars")
}
