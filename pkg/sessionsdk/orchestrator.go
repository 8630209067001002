package sessionsdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/plumeapp/plume/pkg/idx"
)

// Phase is the orchestrator's position in the session lifecycle.
type Phase string

const (
	PhaseAnonymous        Phase = "anonymous"
	PhaseSigningIn        Phase = "signing_in"
	PhaseAwaitingCallback Phase = "awaiting_callback"
	PhaseAuthenticated    Phase = "authenticated"
	PhaseSigningOut       Phase = "signing_out"
	PhaseRestoring        Phase = "restoring"
)

var (
	ErrNotAuthenticated = errors.New("sessionsdk: no authenticated session")
	ErrPhaseConflict    = errors.New("sessionsdk: operation not valid in current phase")
	ErrNothingToRestore = errors.New("sessionsdk: no persisted session to restore")
	ErrIdentInvalid     = errors.New("sessionsdk: ident is neither a handle nor a DID")
)

// DefaultActivityInterval is how often an authenticated orchestrator
// heartbeats the server.
const DefaultActivityInterval = 5 * time.Minute

// OrchestratorOptions configures a new Orchestrator. Provider, Devices and
// Signer are required; everything else is optional.
type OrchestratorOptions struct {
	Provider Provider
	Devices  DeviceStore
	Signer   *StateSigner

	// Client syncs sessions to the session service. Optional: without it
	// the orchestrator manages purely local sessions.
	Client *Client

	// Profiles enriches sessions after sign-in. Optional, and failures are
	// never fatal.
	Profiles ProfileFetcher

	// ActivityInterval overrides DefaultActivityInterval when positive.
	ActivityInterval time.Duration

	Logger *slog.Logger
}

// Orchestrator drives the client-side session lifecycle: sign-in through an
// OAuth provider, enrichment, server sync, restoration across restarts, and
// sign-out. It is safe for concurrent use.
type Orchestrator struct {
	provider Provider
	devices  DeviceStore
	signer   *StateSigner
	client   *Client
	profiles ProfileFetcher
	logger   *slog.Logger

	activityInterval time.Duration

	mu      sync.Mutex
	phase   Phase
	session *EnhancedSession

	tickerStop chan struct{}
}

func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Provider == nil {
		return nil, errors.New("sessionsdk: Provider is required")
	}
	if opts.Devices == nil {
		return nil, errors.New("sessionsdk: Devices is required")
	}
	if opts.Signer == nil {
		return nil, errors.New("sessionsdk: Signer is required")
	}

	interval := opts.ActivityInterval
	if interval <= 0 {
		interval = DefaultActivityInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		provider:         opts.Provider,
		devices:          opts.Devices,
		signer:           opts.Signer,
		client:           opts.Client,
		profiles:         opts.Profiles,
		logger:           logger,
		activityInterval: interval,
		phase:            PhaseAnonymous,
	}, nil
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Session returns a copy of the current session, or nil when anonymous.
func (o *Orchestrator) Session() *EnhancedSession {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return nil
	}
	clone := *o.session
	return &clone
}

// SignIn begins a sign-in for the given handle or DID and returns the
// provider URL to send the user agent to. The session ID is minted up front
// and carried through the redirect inside the signed state, so the session
// identity survives the round-trip.
func (o *Orchestrator) SignIn(ctx context.Context, ident, redirect string) (string, error) {
	// Cheap structural check before any provider round-trip; the provider
	// still does the real resolution
	if !idx.IsValidDID(ident) && !idx.IsValidHandle(ident) {
		return "", ErrIdentInvalid
	}

	o.mu.Lock()
	if o.phase != PhaseAnonymous {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: sign-in from %s", ErrPhaseConflict, o.phase)
	}
	o.phase = PhaseSigningIn
	o.mu.Unlock()

	state, err := o.signer.Sign(AuthState{
		Ident:     ident,
		Redirect:  redirect,
		SessionID: idx.NewSessionID(),
	})
	if err != nil {
		o.setPhase(PhaseAnonymous)
		return "", fmt.Errorf("sign state: %w", err)
	}

	authURL, err := o.provider.Authorize(ctx, ident, state)
	if err != nil {
		o.setPhase(PhaseAnonymous)
		return "", fmt.Errorf("provider authorize: %w", err)
	}

	o.setPhase(PhaseAwaitingCallback)
	return authURL, nil
}

// HandleCallback completes a sign-in from the provider's callback query
// parameters. An unparsable or missing state parameter does not abort the
// flow: the exchange already proves who signed in, so the orchestrator mints
// a fresh session ID and carries on. Profile enrichment and server sync are
// both best-effort.
//
// A process restart between SignIn and the callback leaves the orchestrator
// anonymous, so the callback is accepted from that phase too.
func (o *Orchestrator) HandleCallback(ctx context.Context, params url.Values) (*EnhancedSession, error) {
	o.mu.Lock()
	if o.phase != PhaseAwaitingCallback && o.phase != PhaseAnonymous {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: callback in %s", ErrPhaseConflict, o.phase)
	}
	o.phase = PhaseSigningIn
	o.mu.Unlock()

	// A failed callback leaves us cleanly anonymous; the user can simply
	// start over
	fail := func(err error) (*EnhancedSession, error) {
		o.setPhase(PhaseAnonymous)
		return nil, err
	}

	state, err := o.signer.Parse(params.Get("state"))
	if err != nil {
		// Tolerated: a stale or mangled state costs us the pre-minted
		// session ID, nothing more
		o.logger.Warn("callback state unparsable, minting fresh session id")
		state = AuthState{}
	}
	if state.SessionID == "" {
		state.SessionID = idx.NewSessionID()
	}

	ext, err := o.provider.Exchange(ctx, params)
	if err != nil {
		return fail(fmt.Errorf("provider exchange: %w", err))
	}

	deviceID, err := o.devices.DeviceID()
	if err != nil {
		return fail(fmt.Errorf("device id: %w", err))
	}

	sess := &EnhancedSession{
		ExternalSession: *ext,
		SessionID:       state.SessionID,
		DeviceID:        deviceID,
		SignedInAt:      time.Now().UTC(),
	}
	sess.Profile = o.fetchProfile(ctx, ext.DID)

	o.syncToServer(ctx, sess)

	if err := o.devices.SaveSession(sess); err != nil {
		o.logger.Warn("persisting session failed", "err", err)
	}

	o.mu.Lock()
	o.session = sess
	o.phase = PhaseAuthenticated
	o.startActivityTickerLocked()
	o.mu.Unlock()

	clone := *sess
	return &clone, nil
}

// Restore revives the persisted session from the device store, confirms it
// with the provider, and re-syncs it to the server. An unrestorable session
// is cleared and reported via ErrNothingToRestore; the orchestrator ends up
// cleanly anonymous, never stuck.
func (o *Orchestrator) Restore(ctx context.Context) (*EnhancedSession, error) {
	o.mu.Lock()
	if o.phase != PhaseAnonymous {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: restore from %s", ErrPhaseConflict, o.phase)
	}
	o.phase = PhaseRestoring
	o.mu.Unlock()

	stored, err := o.devices.LoadSession()
	if err != nil || stored == nil {
		o.setPhase(PhaseAnonymous)
		if err != nil {
			o.logger.Warn("loading persisted session failed", "err", err)
		}
		return nil, ErrNothingToRestore
	}

	ext, err := o.provider.Restore(ctx, stored.DID)
	if err != nil {
		// Provider-side session is gone; drop ours too
		o.logger.Info("provider session not restorable, clearing local state", "err", err)
		_ = o.devices.ClearSession()
		o.setPhase(PhaseAnonymous)
		return nil, ErrNothingToRestore
	}

	sess := &EnhancedSession{
		ExternalSession: *ext,
		SessionID:       stored.SessionID,
		DeviceID:        stored.DeviceID,
		SignedInAt:      stored.SignedInAt,
	}
	// Prefer a fresh profile, fall back to what we stored
	sess.Profile = o.fetchProfile(ctx, ext.DID)
	if sess.Profile == (Profile{}) {
		sess.Profile = stored.Profile
	}

	o.syncToServer(ctx, sess)

	// A restore is itself user activity; record it right away instead of
	// waiting for the first heartbeat
	if o.client != nil {
		if _, err := o.client.UpdateActivity(ctx, sess.SessionID, time.Now()); err != nil {
			o.logger.Warn("activity update after restore failed", "err", err)
		}
	}

	if err := o.devices.SaveSession(sess); err != nil {
		o.logger.Warn("persisting session failed", "err", err)
	}

	o.mu.Lock()
	o.session = sess
	o.phase = PhaseAuthenticated
	o.startActivityTickerLocked()
	o.mu.Unlock()

	clone := *sess
	return &clone, nil
}

// SignOut tears the session down. The three steps, provider revocation,
// server deactivation, and local cleanup, are independent: a failure in one
// is logged and the rest still run, and the orchestrator always ends up
// anonymous.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	o.mu.Lock()
	if o.phase != PhaseAuthenticated {
		o.mu.Unlock()
		return fmt.Errorf("%w: sign-out from %s", ErrPhaseConflict, o.phase)
	}
	o.phase = PhaseSigningOut
	sess := o.session
	o.stopActivityTickerLocked()
	o.mu.Unlock()

	if err := o.provider.SignOut(ctx, sess.DID); err != nil {
		o.logger.Warn("provider sign-out failed", "err", err)
	}

	if o.client != nil {
		if err := o.client.Deactivate(ctx, sess.SessionID); err != nil {
			o.logger.Warn("server deactivation failed", "err", err)
		}
	}

	if err := o.devices.ClearSession(); err != nil {
		o.logger.Warn("clearing persisted session failed", "err", err)
	}

	o.mu.Lock()
	o.session = nil
	o.phase = PhaseAnonymous
	o.mu.Unlock()

	return nil
}

// Close stops the background activity heartbeat without signing out.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopActivityTickerLocked()
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

func (o *Orchestrator) fetchProfile(ctx context.Context, did string) Profile {
	if o.profiles == nil {
		return Profile{}
	}

	profile, err := o.profiles.FetchProfile(ctx, did)
	if err != nil {
		// Best effort only; an unreachable profile service never blocks
		// sign-in
		o.logger.Warn("profile fetch failed", "did", did, "err", err)
		return Profile{}
	}
	return profile
}

// syncToServer pushes the session to the session service. Failures are
// logged and swallowed: the next heartbeat or restore retries, and a user
// who just signed in stays signed in.
func (o *Orchestrator) syncToServer(ctx context.Context, sess *EnhancedSession) {
	if o.client == nil {
		return
	}

	resp, err := o.client.Sync(ctx, SyncRequest{
		DID:         sess.DID,
		Handle:      sess.Handle,
		DisplayName: sess.Profile.DisplayName,
		Avatar:      sess.Profile.Avatar,
		Description: sess.Profile.Description,
		PDS:         sess.PDS,
		SessionID:   sess.SessionID,
		DeviceID:    sess.DeviceID,
	})
	if err != nil {
		o.logger.Warn("server sync failed", "err", err)
		return
	}
	if resp.Warning != "" {
		o.logger.Warn("server sync partial", "warning", resp.Warning)
	}
}

// startActivityTickerLocked starts the heartbeat goroutine. Caller holds o.mu.
func (o *Orchestrator) startActivityTickerLocked() {
	if o.client == nil || o.tickerStop != nil {
		return
	}

	stop := make(chan struct{})
	o.tickerStop = stop

	go func() {
		ticker := time.NewTicker(o.activityInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				o.heartbeat()
			case <-stop:
				return
			}
		}
	}()
}

// stopActivityTickerLocked stops the heartbeat goroutine. Caller holds o.mu.
func (o *Orchestrator) stopActivityTickerLocked() {
	if o.tickerStop == nil {
		return
	}
	close(o.tickerStop)
	o.tickerStop = nil
}

func (o *Orchestrator) heartbeat() {
	o.mu.Lock()
	sess := o.session
	o.mu.Unlock()

	if sess == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := o.client.UpdateActivity(ctx, sess.SessionID, time.Now())
	if err != nil {
		o.logger.Warn("activity heartbeat failed", "err", err)
		return
	}
	if !resp.Updated {
		// The server lost (or never had) our record; a full sync converges
		o.syncToServer(ctx, sess)
	}
}
