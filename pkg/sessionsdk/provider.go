package sessionsdk

import (
	"context"
	"net/url"
)

// Provider abstracts the external OAuth provider that actually holds tokens.
// The orchestrator never sees token material; it only learns who the user
// signed in as.
type Provider interface {
	// Authorize begins a sign-in for the given handle or DID. The returned
	// URL is where the user agent must be sent; state must be carried
	// through the round-trip untouched.
	Authorize(ctx context.Context, ident, state string) (authURL string, err error)

	// Exchange completes the flow from the callback query parameters and
	// returns the resolved external session.
	Exchange(ctx context.Context, params url.Values) (*ExternalSession, error)

	// Restore revives a previously established provider session for the
	// given DID, e.g. from tokens the provider persisted itself. It returns
	// an error when nothing restorable remains.
	Restore(ctx context.Context, did string) (*ExternalSession, error)

	// SignOut revokes the provider-side session for the given DID.
	SignOut(ctx context.Context, did string) error
}

// ProfileFetcher is the optional enrichment hook. Fetch failures are always
// tolerated; sign-in never depends on a profile being available.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, did string) (Profile, error)
}
