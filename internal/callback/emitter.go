// Package callback delivers call lifecycle events to the orchestrator that
// requested the call.
//
// Every event is a JSON POST to the per-call callback URL, authenticated with
// the bridge's shared secret. Delivery is best-effort: a failed callback is
// logged and dropped, never retried, and a circuit breaker stops the bridge
// from hammering an orchestrator that is down.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/timetocall/callbridge/internal/observe"
	"github.com/timetocall/callbridge/internal/resilience"
	"github.com/timetocall/callbridge/pkg/types"
)

// Event names sent to the orchestrator.
const (
	EventStatusUpdate     = "status_update"
	EventTranscriptUpdate = "transcript_update"
	EventCallCompleted    = "call_completed"
)

const defaultTimeout = 10 * time.Second

// statusUpdate is the body of a status_update event.
type statusUpdate struct {
	CallID string `json:"call_id"`
	Event  string `json:"event"`
	Status string `json:"status"`
}

// transcriptUpdate is the body of a transcript_update event.
type transcriptUpdate struct {
	CallID string                `json:"call_id"`
	Event  string                `json:"event"`
	Entry  types.TranscriptEntry `json:"transcript_entry"`
}

// callCompleted is the body of a call_completed event.
type callCompleted struct {
	CallID          string                  `json:"call_id"`
	Event           string                  `json:"event"`
	Status          string                  `json:"status"`
	Summary         string                  `json:"summary"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Transcript      []types.TranscriptEntry `json:"transcript"`
}

// Option configures an [Emitter].
type Option func(*Emitter)

// WithHTTPClient replaces the HTTP client used for deliveries.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Emitter) { e.httpClient = c }
}

// WithBaseOverride rewrites the scheme and host of every callback URL to
// those of base. Used when orchestrators register addresses the bridge
// cannot reach directly.
func WithBaseOverride(base string) Option {
	return func(e *Emitter) { e.baseOverride = base }
}

// WithMetrics replaces the metrics instance deliveries are recorded against.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Emitter) { e.metrics = m }
}

// Emitter sends lifecycle events to orchestrator callback URLs.
// It is safe for concurrent use.
type Emitter struct {
	secret       string
	baseOverride string
	httpClient   *http.Client
	breaker      *resilience.CircuitBreaker
	metrics      *observe.Metrics
}

// New creates an [Emitter] authenticating with the given bridge secret.
func New(secret string, opts ...Option) *Emitter {
	e := &Emitter{
		secret:     secret,
		httpClient: &http.Client{Timeout: defaultTimeout},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "orchestrator-callbacks",
		}),
		metrics: observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StatusUpdate delivers a status_update event. Errors are logged, not
// returned, since callback failures must never affect the call itself.
func (e *Emitter) StatusUpdate(ctx context.Context, callbackURL, callID, status string) {
	e.deliver(ctx, callbackURL, callID, EventStatusUpdate, statusUpdate{
		CallID: callID,
		Event:  EventStatusUpdate,
		Status: status,
	})
}

// TranscriptUpdate delivers a transcript_update event for one flushed entry.
func (e *Emitter) TranscriptUpdate(ctx context.Context, callbackURL, callID string, entry types.TranscriptEntry) {
	e.deliver(ctx, callbackURL, callID, EventTranscriptUpdate, transcriptUpdate{
		CallID: callID,
		Event:  EventTranscriptUpdate,
		Entry:  entry,
	})
}

// CallCompleted delivers the final call_completed event with the summary and
// full transcript.
func (e *Emitter) CallCompleted(ctx context.Context, callbackURL, callID, status, summary string, duration time.Duration, transcript []types.TranscriptEntry) {
	if transcript == nil {
		transcript = []types.TranscriptEntry{}
	}
	e.deliver(ctx, callbackURL, callID, EventCallCompleted, callCompleted{
		CallID:          callID,
		Event:           EventCallCompleted,
		Status:          status,
		Summary:         summary,
		DurationSeconds: duration.Seconds(),
		Transcript:      transcript,
	})
}

// deliver posts one event through the circuit breaker and logs any failure.
func (e *Emitter) deliver(ctx context.Context, callbackURL, callID, event string, body any) {
	if callbackURL == "" {
		return
	}

	target, err := e.resolveURL(callbackURL)
	if err != nil {
		slog.Warn("callback: bad callback URL",
			"call_id", callID, "event", event, "url", callbackURL, "err", err)
		return
	}

	err = e.breaker.Execute(func() error {
		return e.post(ctx, target, body)
	})

	status := "ok"
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		status = "breaker_open"
	case err != nil:
		status = "error"
	}
	e.metrics.RecordCallbackDelivery(ctx, event, status)

	if err != nil {
		slog.Warn("callback: delivery failed",
			"call_id", callID, "event", event, "url", target, "err", err)
	}
}

// resolveURL applies the configured base override, keeping the original path
// and query.
func (e *Emitter) resolveURL(callbackURL string) (string, error) {
	if e.baseOverride == "" {
		return callbackURL, nil
	}

	orig, err := url.Parse(callbackURL)
	if err != nil {
		return "", fmt.Errorf("callback: parse url: %w", err)
	}
	base, err := url.Parse(e.baseOverride)
	if err != nil {
		return "", fmt.Errorf("callback: parse base override: %w", err)
	}

	orig.Scheme = base.Scheme
	orig.Host = base.Host
	return orig.String(), nil
}

func (e *Emitter) post(ctx context.Context, target string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("callback: marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("callback: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.secret)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback: post: unexpected status %d", resp.StatusCode)
	}
	return nil
}
