package telnyx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.telnyx.com/v2"

	// streamSampleRate is the bidirectional stream rate requested from
	// Telnyx. 16 kHz L16 matches the voice model's input format so the
	// inbound leg needs no resampling in the common case.
	streamSampleRate = 16000
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithBaseURL overrides the Telnyx API base URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// ── Client ─────────────────────────────────────────────────────────────────────

// Client talks to the Telnyx Call Control REST API. It is safe for
// concurrent use.
type Client struct {
	apiKey       string
	connectionID string
	fromNumber   string
	baseURL      string
	httpClient   *http.Client
}

// New creates a Telnyx control client. connectionID selects the Call Control
// application the calls run under and fromNumber is the caller ID for
// outbound dials.
func New(apiKey, connectionID, fromNumber string, opts ...Option) *Client {
	c := &Client{
		apiKey:       apiKey,
		connectionID: connectionID,
		fromNumber:   fromNumber,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// dialRequest is the POST /calls body. Media streaming is deliberately not
// requested here; it is started per call once the callee answers, so ring
// tone and early media never reach the voice model.
type dialRequest struct {
	ConnectionID string `json:"connection_id"`
	To           string `json:"to"`
	From         string `json:"from"`
	WebhookURL   string `json:"webhook_url,omitempty"`
}

type dialResponse struct {
	Data struct {
		CallControlID string `json:"call_control_id"`
	} `json:"data"`
}

// streamingStartRequest is the POST /calls/{id}/actions/streaming_start body.
type streamingStartRequest struct {
	StreamURL                     string `json:"stream_url"`
	StreamTrack                   string `json:"stream_track"`
	StreamBidirectionalMode       string `json:"stream_bidirectional_mode"`
	StreamBidirectionalCodec      string `json:"stream_bidirectional_codec"`
	StreamBidirectionalSampleRate int    `json:"stream_bidirectional_sampling_rate"`
}

// Dial places an outbound call to the given E.164 number and returns the
// Telnyx call control ID. Call lifecycle webhooks are delivered to
// webhookURL.
func (c *Client) Dial(ctx context.Context, to, webhookURL string) (string, error) {
	req := dialRequest{
		ConnectionID: c.connectionID,
		To:           to,
		From:         c.fromNumber,
		WebhookURL:   webhookURL,
	}

	var resp dialResponse
	if err := c.post(ctx, "/calls", req, &resp); err != nil {
		return "", fmt.Errorf("telnyx: dial %s: %w", to, err)
	}
	if resp.Data.CallControlID == "" {
		return "", fmt.Errorf("telnyx: dial %s: response missing call_control_id", to)
	}
	return resp.Data.CallControlID, nil
}

// StartStreaming asks Telnyx to open the bidirectional media WebSocket for
// an answered call. streamURL must be a wss:// URL reachable by Telnyx.
func (c *Client) StartStreaming(ctx context.Context, callControlID, streamURL string) error {
	req := streamingStartRequest{
		StreamURL:                     streamURL,
		StreamTrack:                   "inbound_track",
		StreamBidirectionalMode:       "rtp",
		StreamBidirectionalCodec:      "L16",
		StreamBidirectionalSampleRate: streamSampleRate,
	}
	if err := c.post(ctx, "/calls/"+callControlID+"/actions/streaming_start", req, nil); err != nil {
		return fmt.Errorf("telnyx: start streaming: %w", err)
	}
	return nil
}

// Hangup terminates the call. Hanging up a call that already ended returns
// an error from Telnyx; callers treating hangup as best-effort should log
// and continue.
func (c *Client) Hangup(ctx context.Context, callControlID string) error {
	if err := c.post(ctx, "/calls/"+callControlID+"/actions/hangup", struct{}{}, nil); err != nil {
		return fmt.Errorf("telnyx: hangup: %w", err)
	}
	return nil
}

// post sends a JSON POST to the given API path and decodes the response
// into out when out is non-nil.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
