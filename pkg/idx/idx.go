package idx

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type ID string

// Zero represents the zero value ID, don't use this unless its a placeholder.
const Zero ID = ""

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

const (
	// SessionIDPrefix marks opaque session tokens handed to browsers.
	SessionIDPrefix = "sess_"
	// DeviceIDPrefix marks the per-installation device token. Device IDs are
	// minted once per browser/client install and survive sign-outs.
	DeviceIDPrefix = "dev_"

	// tokenLength is the number of random base36 characters after the prefix.
	// 36^21 is a little over 2^108, comfortably past the point where
	// collisions matter.
	tokenLength = 21

	tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var (
	globalOnce sync.Once
	global     *generator
)

// generator is a tool to safely generate ULIDs concurrently using a monotonic
// source.
type generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (g *generator) New() ID {
	return g.NewAt(time.Now().UTC())
}

func (g *generator) NewAt(t time.Time) ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	u := ulid.MustNew(ulid.Timestamp(t), g.entropy)
	return ID(u.String())
}

func initGlobal() {
	src := ulid.Monotonic(rand.Reader, 0) // Max Monotonic Window
	global = &generator{entropy: src}
}

// New returns a new lexicographically sortable ULID-based ID using the
// current time in UTC and a monotonic entropy source. These are used for
// internal row IDs and request IDs, never for anything handed to a browser.
func New() ID {
	globalOnce.Do(initGlobal)
	return global.New()
}

// MustNew is like New but panics on unexpected failure (extremely unlikely).
func MustNew() ID {
	id := New()
	if id == Zero {
		// Panic here so we don't put the program into an unknown state
		panic("idx: failed to generate ULID")
	}

	return id
}

// NewAt generates an ID at the provided time (UTC), useful for tests or
// constructing time-bounded cursors.
func NewAt(t time.Time) ID {
	globalOnce.Do(initGlobal)
	return global.NewAt(t)
}

// Parse parses a ULID string into an ID and validates its form.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return Zero, ErrInvalid
	}

	if _, err := ulid.ParseStrict(s); err != nil {
		return Zero, ErrInvalid
	}

	return ID(s), nil
}

// MustParse parses or panics. Useful for hard-coded IDs in tests.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Time extracts the embedded UTC timestamp from the ID.
// If the ID is invalid or zero, it returns the zero time.
func (id ID) Time() time.Time {
	if id.IsZero() {
		return time.Time{}
	}

	u, err := ulid.ParseStrict(id.String())
	if err != nil {
		return time.Time{}
	}

	// ULID time component is in ms since epoch.
	return ulid.Time(u.Time())
}

// NewSessionID mints a fresh session identifier: "sess_" followed by 21
// random base36 lowercase characters from crypto/rand. A new session ID is
// minted on every sign-in and again after sign-out.
func NewSessionID() string {
	return SessionIDPrefix + randomToken()
}

// NewDeviceID mints a device identifier: "dev_" plus the same random suffix.
// Exactly one device ID belongs to a browser/client installation; callers are
// expected to persist it client-side rather than regenerate it.
func NewDeviceID() string {
	return DeviceIDPrefix + randomToken()
}

// randomToken draws tokenLength characters uniformly from tokenAlphabet using
// crypto/rand. rand.Int keeps the draw unbiased over the 36-char alphabet.
func randomToken() string {
	max := big.NewInt(int64(len(tokenAlphabet)))

	var b strings.Builder
	b.Grow(tokenLength)
	for range tokenLength {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken, at
			// which point nothing in this process is trustworthy.
			panic("idx: crypto/rand failure: " + err.Error())
		}
		b.WriteByte(tokenAlphabet[n.Int64()])
	}
	return b.String()
}

// IsValidDID is a cheap structural pre-filter for decentralized identifiers.
// It is not a protocol-conformant DID validator; use sanitize.DID before
// anything touches persistence.
func IsValidDID(s string) bool {
	return strings.HasPrefix(s, "did:") && len(s) > 8
}

// IsValidHandle is a cheap structural pre-filter for AT-style handles
// (label(.label)+ with a TLD-ish suffix of at least two characters).
func IsValidHandle(s string) bool {
	if s == "" {
		return false
	}
	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" {
			return false
		}
	}
	return len(labels[len(labels)-1]) >= 2
}
