package sessionsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client talks to the session service HTTP API. Outbound requests are paced
// by a local limiter so a misbehaving caller loop trips client-side before
// it burns the server's rate limit windows.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	limiter *rate.Limiter
}

// NewClient creates a session service client. The default pacing allows
// short bursts but sustains well under the server's strictest window.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Sync reports an authenticated identity and its session to the server.
// A SyncResponse with a nil Session and a Warning means the identity landed
// but the session record is pending; retry to converge.
func (c *Client) Sync(ctx context.Context, req SyncRequest) (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.postJSON(ctx, "/v1/session/sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateActivity moves the server-side last_active_at forward. An unknown
// session comes back with Updated=false, not an error.
func (c *Client) UpdateActivity(ctx context.Context, sessionID string, ts time.Time) (*ActivityResponse, error) {
	var resp ActivityResponse
	req := ActivityRequest{SessionID: sessionID, LastActiveAt: ts.UTC()}
	if err := c.postJSON(ctx, "/v1/session/activity", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Deactivate flips the server-side session record inactive.
func (c *Client) Deactivate(ctx context.Context, sessionID string) error {
	var resp DeactivateResponse
	return c.postJSON(ctx, "/v1/session/deactivate", DeactivateRequest{SessionID: sessionID}, &resp)
}

// CurrentSession fetches the verified identity and session for a session ID.
func (c *Client) CurrentSession(ctx context.Context, sessionID string) (*CurrentSessionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/session/current", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Session-ID", sessionID)

	httpResp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	var resp CurrentSessionResponse
	if err := decodeResponse(httpResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeResponse(resp, out)
}

// decodeResponse decodes a 2xx body into out, or a non-2xx body into an
// *APIError. An unparsable error body still yields an APIError carrying the
// status code.
func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	apiErr := &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: http.StatusText(resp.StatusCode),
	}
	_ = json.NewDecoder(resp.Body).Decode(apiErr)
	apiErr.StatusCode = resp.StatusCode
	return apiErr
}
