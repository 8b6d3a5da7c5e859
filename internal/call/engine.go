package call

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/timetocall/callbridge/internal/config"
	"github.com/timetocall/callbridge/internal/observe"
	"github.com/timetocall/callbridge/internal/registry"
	"github.com/timetocall/callbridge/pkg/provider/s2s"
	"github.com/timetocall/callbridge/pkg/types"
)

// summaryFallback is reported when summary generation fails after a
// completed call.
const summaryFallback = "Call completed but summary generation failed."

// Carrier is the telephony control plane the engine drives. Implemented by
// the Telnyx REST client; an interface so engine tests can script it.
type Carrier interface {
	// Dial places an outbound call and returns the carrier's call control ID.
	Dial(ctx context.Context, to, webhookURL string) (string, error)

	// StartStreaming asks the carrier to open the media WebSocket to streamURL.
	StartStreaming(ctx context.Context, controlID, streamURL string) error

	// Hangup terminates the call on the carrier side.
	Hangup(ctx context.Context, controlID string) error
}

// Notifier delivers lifecycle events to the orchestrator.
type Notifier interface {
	StatusUpdate(ctx context.Context, callbackURL, callID, status string)
	TranscriptUpdate(ctx context.Context, callbackURL, callID string, entry types.TranscriptEntry)
	CallCompleted(ctx context.Context, callbackURL, callID, status, summary string, duration time.Duration, transcript []types.TranscriptEntry)
}

// Summarizer produces the post-call summary.
type Summarizer interface {
	Generate(ctx context.Context, transcript []types.TranscriptEntry) (string, error)
}

// EngineConfig holds all dependencies and tuning for an [Engine].
type EngineConfig struct {
	Carrier    Carrier
	Voice      s2s.Provider
	Notifier   Notifier
	Summarizer Summarizer

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics

	// PublicURL is the externally reachable base URL of this bridge, used
	// to derive the webhook URL and the media stream URL.
	PublicURL string

	// VoiceName selects the session's prebuilt voice. Empty means default.
	VoiceName string

	// ByteOrder is the int16 byte order of PCM written to the carrier.
	ByteOrder config.ByteOrder

	// NoAnswerTimeout fails calls still ringing this long after dial.
	NoAnswerTimeout time.Duration

	// MaxCallDuration caps the conversation; HangupGrace is the extra slack
	// the safety timer allows before force-completing.
	MaxCallDuration time.Duration
	HangupGrace     time.Duration
}

// Engine owns every active call. It is safe for concurrent use; all per-call
// mutation funnels through the call record and the completion path is
// serialised by registry removal.
type Engine struct {
	carrier    Carrier
	voice      s2s.Provider
	notifier   Notifier
	summarizer Summarizer
	metrics    *observe.Metrics
	registry   *registry.Registry[*Call]

	publicURL       string
	voiceName       string
	byteOrder       config.ByteOrder
	noAnswerTimeout time.Duration
	maxCallDuration time.Duration
	hangupGrace     time.Duration

	// ctx parents all per-call background work (reader, timers).
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates an [Engine]. Zero durations get the config defaults.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.NoAnswerTimeout <= 0 {
		cfg.NoAnswerTimeout = config.DefaultNoAnswerTimeout
	}
	if cfg.MaxCallDuration <= 0 {
		cfg.MaxCallDuration = config.DefaultMaxCallDuration
	}
	if cfg.HangupGrace <= 0 {
		cfg.HangupGrace = config.DefaultHangupGrace
	}
	if cfg.ByteOrder == "" {
		cfg.ByteOrder = config.LittleEndian
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		carrier:         cfg.Carrier,
		voice:           cfg.Voice,
		notifier:        cfg.Notifier,
		summarizer:      cfg.Summarizer,
		metrics:         cfg.Metrics,
		registry:        registry.New[*Call](),
		publicURL:       strings.TrimRight(cfg.PublicURL, "/"),
		voiceName:       cfg.VoiceName,
		byteOrder:       cfg.ByteOrder,
		noAnswerTimeout: cfg.NoAnswerTimeout,
		maxCallDuration: cfg.MaxCallDuration,
		hangupGrace:     cfg.HangupGrace,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// ActiveCalls returns the number of calls currently tracked.
func (e *Engine) ActiveCalls() int { return e.registry.Len() }

// Get returns the active call record for callID.
func (e *Engine) Get(callID string) (*Call, bool) { return e.registry.Get(callID) }

// WebhookURL is where the carrier must deliver call events.
func (e *Engine) WebhookURL() string { return e.publicURL + "/telnyx/webhook" }

// streamURL is the per-call media WebSocket endpoint handed to the carrier.
func (e *Engine) streamURL(callID string) string {
	u := e.publicURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/telnyx/media-stream?call_id=" + url.QueryEscape(callID)
}

// StartCall registers a new call and dials it through the carrier. It
// returns the carrier's call control ID.
func (e *Engine) StartCall(ctx context.Context, p Params) (string, error) {
	c := newCall(p)
	c.assembler = newAssembler(func(entry types.TranscriptEntry) {
		c.appendTranscript(entry)
		go e.notifier.TranscriptUpdate(e.ctx, p.CallbackURL, p.CallID, entry)
	})

	if err := e.registry.Add(c); err != nil {
		return "", fmt.Errorf("call: start %q: %w", p.CallID, err)
	}
	e.metrics.CallsStarted.Add(ctx, 1)
	e.metrics.ActiveCalls.Add(ctx, 1)

	controlID, err := e.carrier.Dial(ctx, p.PhoneNumber, e.WebhookURL())
	if err != nil {
		e.registry.Remove(p.CallID)
		e.metrics.ActiveCalls.Add(ctx, -1)
		go e.notifier.StatusUpdate(e.ctx, p.CallbackURL, p.CallID, string(StatusFailed))
		return "", fmt.Errorf("call: dial %q: %w", p.CallID, err)
	}

	c.setControlID(controlID)
	c.advance(StatusDialing)
	go e.notifier.StatusUpdate(e.ctx, p.CallbackURL, p.CallID, string(StatusDialing))

	go e.noAnswerTimer(c)
	go e.maxDurationTimer(c)

	slog.Info("call dialing",
		"call_id", p.CallID,
		"control_id", controlID,
		"to", p.PhoneNumber,
	)
	return controlID, nil
}

// HandleAnswered processes the carrier's call.answered webhook: it unblocks
// waiting media handlers and asks the carrier to start streaming. Streaming
// deliberately starts here rather than at dial time so ringback is never
// captured as call audio.
func (e *Engine) HandleAnswered(ctx context.Context, controlID string) {
	c, ok := e.registry.ByControlID(controlID)
	if !ok {
		slog.Warn("call: answered webhook for unknown control id", "control_id", controlID)
		return
	}

	c.SignalAnswered()

	if err := e.carrier.StartStreaming(ctx, controlID, e.streamURL(c.CallID())); err != nil {
		slog.Error("call: start streaming failed",
			"call_id", c.CallID(), "control_id", controlID, "err", err)
		e.Complete(ctx, c.CallID(), true)
		return
	}
	slog.Info("call answered", "call_id", c.CallID(), "control_id", controlID)
}

// HandleRinging records the ringing state. No callback is emitted; the
// orchestrator only learns about dialing, connected, and terminal states.
func (e *Engine) HandleRinging(controlID string) {
	if c, ok := e.registry.ByControlID(controlID); ok {
		c.advance(StatusRinging)
	}
}

// HandleHangup processes the carrier's call.hangup webhook by completing
// the call normally.
func (e *Engine) HandleHangup(ctx context.Context, controlID string) {
	c, ok := e.registry.ByControlID(controlID)
	if !ok {
		return
	}
	slog.Info("call hangup received", "call_id", c.CallID(), "control_id", controlID)
	e.Complete(ctx, c.CallID(), false)
}

// EndCall terminates a call on user request: best-effort hangup through the
// carrier, then normal completion.
func (e *Engine) EndCall(ctx context.Context, callID string) {
	c, ok := e.registry.Get(callID)
	if !ok {
		return
	}
	if controlID := c.ControlID(); controlID != "" {
		if err := e.carrier.Hangup(ctx, controlID); err != nil {
			slog.Warn("call: hangup request failed",
				"call_id", callID, "control_id", controlID, "err", err)
		}
	}
	e.Complete(ctx, callID, false)
}

// Complete finishes a call exactly once. The registry removal is the
// idempotency gate: whichever path removes the record runs the teardown, and
// every later caller returns immediately.
func (e *Engine) Complete(ctx context.Context, callID string, failed bool) {
	c, ok := e.registry.Remove(callID)
	if !ok {
		return
	}
	e.metrics.ActiveCalls.Add(ctx, -1)

	if c.Status().Terminal() {
		return
	}

	// Stop the reader before touching the session so no event handling
	// races the teardown.
	if cancel, done := c.reader(); cancel != nil {
		cancel()
		<-done
	}

	if sess := c.Session(); sess != nil {
		if err := sess.Close(); err != nil {
			slog.Warn("call: session close error", "call_id", callID, "err", err)
		}
		e.metrics.ActiveSessions.Add(ctx, -1)
	}

	c.assembler.FlushAll()

	var duration time.Duration
	if connectedAt := c.ConnectedAt(); !connectedAt.IsZero() {
		duration = time.Since(connectedAt)
	}

	transcript := c.Transcript()
	var summaryText string
	if !failed && len(transcript) > 0 {
		text, err := e.summarizer.Generate(ctx, transcript)
		if err != nil {
			slog.Error("call: summary generation failed", "call_id", callID, "err", err)
			text = summaryFallback
		}
		summaryText = text
	}

	c.finalize(failed)
	status := c.Status()
	e.metrics.RecordCallCompleted(ctx, string(status), duration.Seconds())

	go e.notifier.CallCompleted(e.ctx, c.params.CallbackURL, callID,
		string(status), summaryText, duration, transcript)

	slog.Info("call completed",
		"call_id", callID,
		"status", status,
		"duration", duration,
		"turns", len(transcript),
		"chunks_sent", c.ChunksSent(),
		"chunks_dropped", c.ChunksDropped(),
	)
}

// Shutdown ends all active calls and stops background work. Intended for
// process shutdown; calls are completed, not failed, so transcripts and
// summaries still reach the orchestrator.
func (e *Engine) Shutdown(ctx context.Context) {
	for _, c := range e.registry.All() {
		e.EndCall(ctx, c.CallID())
	}
	e.cancel()
}

// noAnswerTimer fails the call if it has not connected within the timeout.
func (e *Engine) noAnswerTimer(c *Call) {
	timer := time.NewTimer(e.noAnswerTimeout)
	defer timer.Stop()

	select {
	case <-e.ctx.Done():
		return
	case <-c.Answered():
		return
	case <-timer.C:
	}

	if _, ok := e.registry.Get(c.CallID()); !ok {
		return
	}
	switch c.Status() {
	case StatusPending, StatusDialing, StatusRinging:
		slog.Info("call: no answer, failing", "call_id", c.CallID())
		if controlID := c.ControlID(); controlID != "" {
			if err := e.carrier.Hangup(e.ctx, controlID); err != nil {
				slog.Warn("call: no-answer hangup failed", "call_id", c.CallID(), "err", err)
			}
		}
		e.Complete(e.ctx, c.CallID(), true)
	}
}

// maxDurationTimer force-completes a call whose hangup never arrived. The
// grace period keeps it from racing a clean hangup at the duration cap.
func (e *Engine) maxDurationTimer(c *Call) {
	timer := time.NewTimer(e.maxCallDuration + e.hangupGrace)
	defer timer.Stop()

	select {
	case <-e.ctx.Done():
		return
	case <-timer.C:
	}

	if _, ok := e.registry.Get(c.CallID()); !ok {
		return
	}
	if c.Status().Terminal() {
		return
	}
	slog.Warn("call: safety timer fired", "call_id", c.CallID())
	e.EndCall(e.ctx, c.CallID())
}
