package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/plumeapp/plume/pkg/sessionsdk"
	"github.com/stretchr/testify/require"
)

// staticProvider stands in for a real OAuth provider in end-to-end runs.
type staticProvider struct {
	session sessionsdk.ExternalSession
	dead    bool
}

func (p *staticProvider) Authorize(_ context.Context, _, state string) (string, error) {
	return "https://provider.example/authorize?state=" + url.QueryEscape(state), nil
}

func (p *staticProvider) Exchange(context.Context, url.Values) (*sessionsdk.ExternalSession, error) {
	sess := p.session
	return &sess, nil
}

func (p *staticProvider) Restore(context.Context, string) (*sessionsdk.ExternalSession, error) {
	if p.dead {
		return nil, errors.New("nothing to restore")
	}
	sess := p.session
	return &sess, nil
}

func (p *staticProvider) SignOut(context.Context, string) error { return nil }

var e2eMaster = []byte("e2e-master-secret-32-bytes-long!")

// TestSessionLifecycle walks the whole journey: sign in through the
// orchestrator, confirm the server knows the session, heartbeat, restore
// from persisted state, and finally sign out everywhere.
func TestSessionLifecycle(t *testing.T) {
	baseURL := setupSessionServer(t)
	client := sessionsdk.NewClient(baseURL)

	provider := &staticProvider{
		session: sessionsdk.ExternalSession{
			DID:    "did:plc:e2euser001",
			Handle: "writer.plume.social",
			PDS:    "https://pds.example.com",
		},
	}
	devices := sessionsdk.NewMemoryDeviceStore()
	signer, err := sessionsdk.NewStateSigner(e2eMaster, 0)
	require.NoError(t, err)

	orch, err := sessionsdk.NewOrchestrator(sessionsdk.OrchestratorOptions{
		Provider: provider,
		Devices:  devices,
		Signer:   signer,
		Client:   client,
	})
	require.NoError(t, err)
	defer orch.Close()

	// 1. Sign in
	authURL, err := orch.SignIn(t.Context(), "writer.plume.social", "/compose")
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	sess, err := orch.HandleCallback(t.Context(), url.Values{
		"state": {state},
		"code":  {"e2e-code"},
	})
	require.NoError(t, err)
	require.Equal(t, sessionsdk.PhaseAuthenticated, orch.Phase())

	// 2. The server now recognizes the session
	current, err := client.CurrentSession(t.Context(), sess.SessionID)
	require.NoError(t, err)
	require.Equal(t, "did:plc:e2euser001", current.Identity.DID)
	require.Equal(t, sess.DeviceID, current.Session.DeviceID)

	// 3. Heartbeat moves activity forward
	activity, err := client.UpdateActivity(t.Context(), sess.SessionID, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.True(t, activity.Updated)

	// 4. Sign out tears everything down
	require.NoError(t, orch.SignOut(t.Context()))
	require.Equal(t, sessionsdk.PhaseAnonymous, orch.Phase())

	_, err = client.CurrentSession(t.Context(), sess.SessionID)
	var apiErr *sessionsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

// TestSessionRestoreAcrossRestart simulates an app restart: a second
// orchestrator sharing the same device store picks the session back up.
func TestSessionRestoreAcrossRestart(t *testing.T) {
	baseURL := setupSessionServer(t)
	client := sessionsdk.NewClient(baseURL)

	provider := &staticProvider{
		session: sessionsdk.ExternalSession{
			DID:    "did:plc:e2euser002",
			Handle: "returning.plume.social",
		},
	}
	devices := sessionsdk.NewMemoryDeviceStore()
	signer, err := sessionsdk.NewStateSigner(e2eMaster, 0)
	require.NoError(t, err)

	first, err := sessionsdk.NewOrchestrator(sessionsdk.OrchestratorOptions{
		Provider: provider,
		Devices:  devices,
		Signer:   signer,
		Client:   client,
	})
	require.NoError(t, err)

	authURL, err := first.SignIn(t.Context(), "returning.plume.social", "")
	require.NoError(t, err)
	parsed, _ := url.Parse(authURL)
	sess, err := first.HandleCallback(t.Context(), url.Values{
		"state": {parsed.Query().Get("state")},
	})
	require.NoError(t, err)
	first.Close()

	// "Restart": fresh orchestrator, same device store
	second, err := sessionsdk.NewOrchestrator(sessionsdk.OrchestratorOptions{
		Provider: provider,
		Devices:  devices,
		Signer:   signer,
		Client:   client,
	})
	require.NoError(t, err)
	defer second.Close()

	restored, err := second.Restore(t.Context())
	require.NoError(t, err)
	require.Equal(t, sess.SessionID, restored.SessionID)
	require.Equal(t, sess.DeviceID, restored.DeviceID)

	current, err := client.CurrentSession(t.Context(), restored.SessionID)
	require.NoError(t, err)
	require.Equal(t, "did:plc:e2euser002", current.Identity.DID)
}

// TestSyncRateLimit fires more sync requests than one window allows and
// expects the overflow to bounce with 429 and limiter headers.
func TestSyncRateLimit(t *testing.T) {
	baseURL := setupSessionServer(t)

	body := `{
		"did": "did:plc:ratelimited",
		"handle": "busy.plume.social",
		"sessionId": "sess_0123456789abcdefghijk",
		"deviceId": "dev_0123456789abcdefghijk"
	}`

	post := func() *http.Response {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost,
			baseURL+"/v1/session/sync", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	// The first ten land inside the window
	for i := 0; i < 10; i++ {
		resp := post()
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d should pass", i+1)
		_ = resp.Body.Close()
	}

	// The eleventh does not
	resp := post()
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
	require.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
}
