package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"
)

const masterSecretLength = 32

// DeriveKey derives a purpose-bound key of size bytes from a master secret
// using HKDF-SHA256. The info string namespaces the derivation so the same
// master secret can back multiple independent keys (e.g. "state-signing").
func DeriveKey(master []byte, info string, size int) ([]byte, error) {
	if len(master) == 0 {
		return nil, fmt.Errorf("cryptox: empty master secret")
	}
	if size <= 0 {
		return nil, fmt.Errorf("cryptox: key size must be positive, got %d", size)
	}

	r := hkdf.New(sha256.New, master, nil, []byte(info))
	key := make([]byte, size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("cryptox: hkdf expand: %w", err)
	}
	return key, nil
}

// LoadOrCreateMasterSecret loads the master secret from the given file, or
// generates and persists a fresh one if the file does not exist. The secret
// is stored base64url-encoded with 0600 permissions.
func LoadOrCreateMasterSecret(path string) ([]byte, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}

	if raw, err := os.ReadFile(path); err == nil {
		secret, decErr := base64.RawURLEncoding.DecodeString(string(raw))
		if decErr != nil {
			return nil, fmt.Errorf("cryptox: corrupt master secret file %s: %w", path, decErr)
		}
		return secret, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	secret := make([]byte, masterSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	encoded := base64.RawURLEncoding.EncodeToString(secret)
	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return nil, err
	}

	return secret, nil
}
