// Package sanitize normalizes and bounds-checks externally supplied strings
// before they are allowed anywhere near persistence. Every function returns
// the cleaned value plus an ok flag; a false flag means the input is
// untrusted and the caller must abort the request. Nothing here ever returns
// a partially-sanitized value.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxTextLength bounds free-form text fields (display names, bios).
	MaxTextLength = 10000

	// MaxDIDLength bounds decentralized identifiers.
	MaxDIDLength = 500

	// MaxHandleLength matches the DNS hostname limit.
	MaxHandleLength = 253

	// MaxTokenLength bounds session and device identifiers.
	MaxTokenLength = 128
)

var (
	reDID       = regexp.MustCompile(`^did:(plc|web):[a-z0-9._:%-]+$`)
	reHandle    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*(\.[a-z0-9-]+)*\.[a-z]{2,}$`)
	reSessionID = regexp.MustCompile(`^sess_[0-9a-z]{1,123}$`)
	reDeviceID  = regexp.MustCompile(`^dev_[0-9a-z]{1,124}$`)
	reSpaces    = regexp.MustCompile(`\s+`)
)

// Text trims, strips control characters, collapses whitespace runs and caps
// the length at MaxTextLength. Unlike the format sanitizers below it never
// rejects; hostile input degrades to a shorter, printable string.
func Text(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		// Drop control characters (including NUL and escape sequences that
		// would corrupt logs), keep everything printable plus plain spaces.
		if unicode.IsControl(r) && r != ' ' {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}

	out := reSpaces.ReplaceAllString(b.String(), " ")
	out = strings.TrimSpace(out)

	if len(out) > MaxTextLength {
		// Never cut a multi-byte rune in half: back the cut point up to the
		// nearest rune boundary, then drop any space the cut exposed so the
		// result round-trips through Text unchanged.
		cut := MaxTextLength
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.TrimRight(out[:cut], " ")
	}
	return out
}

// URL parses the input as a URL and accepts only absolute http/https URLs
// with a hostname no longer than 253 characters. Returns the normalized
// string form on success.
func URL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	host := u.Hostname()
	if host == "" || len(host) > MaxHandleLength {
		return "", false
	}

	return u.String(), true
}

// DID lowercases, trims, and enforces the did:(plc|web):... shape with a
// bounded length.
func DID(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > MaxDIDLength {
		return "", false
	}
	if !reDID.MatchString(s) {
		return "", false
	}
	return s, true
}

// Handle lowercases, trims, and enforces a label(.label)+ hostname shape with
// a TLD-like suffix of at least two letters.
func Handle(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > MaxHandleLength {
		return "", false
	}
	if !reHandle.MatchString(s) {
		return "", false
	}
	return s, true
}

// SessionID lowercases, trims, and enforces the sess_-prefixed opaque token
// format.
func SessionID(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > MaxTokenLength {
		return "", false
	}
	if !reSessionID.MatchString(s) {
		return "", false
	}
	return s, true
}

// DeviceID lowercases, trims, and enforces the dev_-prefixed opaque token
// format.
func DeviceID(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > MaxTokenLength {
		return "", false
	}
	if !reDeviceID.MatchString(s) {
		return "", false
	}
	return s, true
}
