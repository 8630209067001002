package sessionsdk

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/plumeapp/plume/pkg/cryptox"
)

// DefaultStateTTL bounds how long an OAuth redirect round-trip may take.
const DefaultStateTTL = 15 * time.Minute

var ErrStateInvalid = errors.New("sessionsdk: state parameter invalid or expired")

type stateClaims struct {
	jwt.RegisteredClaims

	Ident     string `json:"ident"`
	Redirect  string `json:"redirect,omitempty"`
	SessionID string `json:"sid"`
}

// StateSigner produces and verifies the signed `state` parameter carried
// through the OAuth redirect. Signing keeps the pre-minted session ID and
// redirect target tamper-proof without any server-side state store.
type StateSigner struct {
	key []byte
	ttl time.Duration
}

// NewStateSigner derives a dedicated signing key from the master secret.
// A non-positive ttl falls back to DefaultStateTTL.
func NewStateSigner(master []byte, ttl time.Duration) (*StateSigner, error) {
	key, err := cryptox.DeriveKey(master, "oauth-state-signing", 32)
	if err != nil {
		return nil, fmt.Errorf("derive state key: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{key: key, ttl: ttl}, nil
}

// Sign serializes the AuthState into a short-lived signed token.
func (s *StateSigner) Sign(state AuthState) (string, error) {
	now := time.Now()
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        cryptox.MustGenerateToken(cryptox.TokenSize128),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Ident:     state.Ident,
		Redirect:  state.Redirect,
		SessionID: state.SessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// Parse verifies a state token and recovers the AuthState. Any failure,
// bad signature, wrong algorithm, expiry, garbage input, comes back as
// ErrStateInvalid; callers decide how tolerant to be.
func (s *StateSigner) Parse(raw string) (AuthState, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return AuthState{}, ErrStateInvalid
	}

	return AuthState{
		Ident:     claims.Ident,
		Redirect:  claims.Redirect,
		SessionID: claims.SessionID,
	}, nil
}
