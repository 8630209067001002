package sessionsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/plumeapp/plume/pkg/idx"
)

// DeviceStore persists the per-device state the orchestrator needs across
// process restarts: a stable device ID and the last authenticated session.
type DeviceStore interface {
	// DeviceID returns this device's stable identifier, minting one on
	// first use.
	DeviceID() (string, error)

	// LoadSession returns the persisted session, or nil when none exists.
	LoadSession() (*EnhancedSession, error)

	// SaveSession persists the session, replacing any previous one.
	SaveSession(sess *EnhancedSession) error

	// ClearSession removes the persisted session. Clearing an already
	// empty store is not an error.
	ClearSession() error
}

// ============================================================================
// MemoryDeviceStore - ephemeral, for tests and short-lived processes
// ============================================================================

type MemoryDeviceStore struct {
	mu       sync.Mutex
	deviceID string
	session  *EnhancedSession
}

func NewMemoryDeviceStore() *MemoryDeviceStore {
	return &MemoryDeviceStore{}
}

func (s *MemoryDeviceStore) DeviceID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deviceID == "" {
		s.deviceID = idx.NewDeviceID()
	}
	return s.deviceID, nil
}

func (s *MemoryDeviceStore) LoadSession() (*EnhancedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, nil
	}
	clone := *s.session
	return &clone, nil
}

func (s *MemoryDeviceStore) SaveSession(sess *EnhancedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *sess
	s.session = &clone
	return nil
}

func (s *MemoryDeviceStore) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}

// ============================================================================
// FileDeviceStore - JSON files under a state directory
// ============================================================================

// FileDeviceStore keeps the device ID and session as JSON files under a
// directory, typically something like ~/.config/plume.
type FileDeviceStore struct {
	mu  sync.Mutex
	dir string
}

func NewFileDeviceStore(dir string) (*FileDeviceStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create device store dir: %w", err)
	}
	return &FileDeviceStore{dir: dir}, nil
}

func (s *FileDeviceStore) deviceIDPath() string {
	return filepath.Join(s.dir, "device_id")
}

func (s *FileDeviceStore) sessionPath() string {
	return filepath.Join(s.dir, "session.json")
}

func (s *FileDeviceStore) DeviceID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.deviceIDPath())
	if err == nil && len(raw) > 0 {
		return string(raw), nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	id := idx.NewDeviceID()
	if err := os.WriteFile(s.deviceIDPath(), []byte(id), 0o600); err != nil {
		return "", fmt.Errorf("write device id: %w", err)
	}
	return id, nil
}

func (s *FileDeviceStore) LoadSession() (*EnhancedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.sessionPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess EnhancedSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		// A corrupt session file is treated as no session at all
		return nil, nil
	}
	return &sess, nil
}

func (s *FileDeviceStore) SaveSession(sess *EnhancedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.sessionPath(), raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *FileDeviceStore) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.sessionPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
