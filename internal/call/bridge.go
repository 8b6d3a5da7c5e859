package call

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/timetocall/callbridge/pkg/audio"
	"github.com/timetocall/callbridge/pkg/provider/s2s"
	"github.com/timetocall/callbridge/pkg/telnyx"
)

// voicePCMRate is the PCM sample rate the voice session consumes.
const voicePCMRate = 16000

// HandleMediaWS serves one carrier media WebSocket for the given call. The
// carrier may open an early-media socket before answer and cycles the socket
// periodically during the call, so a single call sees several of these in
// sequence; the voice session outlives them all.
//
// The handler never completes the call. Completion is driven by the hangup
// webhook, EndCall, or the safety timer.
func (e *Engine) HandleMediaWS(ctx context.Context, callID string, conn *websocket.Conn) {
	c, ok := e.registry.Get(callID)
	if !ok {
		_ = conn.Close(websocket.StatusPolicyViolation, "unknown call")
		return
	}

	log := slog.With("call_id", callID)

	// Feed inbound frames through a channel so the pre-answer wait can race
	// the answer signal against the socket closing (early-media case).
	frames := make(chan []byte)
	readCtx, stopRead := context.WithCancel(ctx)
	defer stopRead()
	go func() {
		defer close(frames)
		for {
			typ, data, err := conn.Read(readCtx)
			if err != nil {
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			select {
			case frames <- data:
			case <-readCtx.Done():
				return
			}
		}
	}()

	// Wait for answer, draining any early media. If the socket closes first
	// this was a pre-answer connection; leave the record untouched.
	waiting := true
	for waiting {
		select {
		case <-c.Answered():
			waiting = false
		case _, open := <-frames:
			if !open {
				log.Debug("media ws closed before answer")
				return
			}
			// Early media is dropped, never forwarded.
		}
	}

	var session s2s.Session
	if c.claimSessionOpen() {
		// First post-answer connection: this is where the call becomes a
		// conversation.
		opened, err := e.openSession(ctx, c)
		c.signalSessionReady()
		if err != nil {
			log.Error("voice session open failed", "err", err)
			_ = conn.Close(websocket.StatusInternalError, "session unavailable")
			e.Complete(ctx, callID, true)
			return
		}
		session = opened
	} else {
		// A concurrent handler owns the open, or the session already exists.
		select {
		case <-c.SessionReady():
		case <-ctx.Done():
			return
		}
		session = c.Session()
		if session == nil {
			// The opening handler failed and is completing the call.
			_ = conn.Close(websocket.StatusInternalError, "session unavailable")
			return
		}
		log.Debug("media ws reconnected")
	}

	c.publishWS(conn)
	defer c.clearWS(conn)

	e.pumpPhoneAudio(c, session, frames, log)
}

// openSession transitions the call to connected, opens the voice session,
// sends the opening text turn, and spawns the persistent reader.
func (e *Engine) openSession(ctx context.Context, c *Call) (s2s.Session, error) {
	p := c.Params()

	if c.advance(StatusConnected) {
		go e.notifier.StatusUpdate(e.ctx, p.CallbackURL, p.CallID, string(StatusConnected))
	}

	start := time.Now()
	session, err := e.voice.Connect(ctx, s2s.Config{
		Instructions: BuildSystemPrompt(p.Briefing, p.UserName, p.Language),
		Voice:        e.voiceName,
	})
	if err != nil {
		return nil, err
	}
	e.metrics.SessionConnectDuration.Record(ctx, time.Since(start).Seconds())
	e.metrics.ActiveSessions.Add(ctx, 1)
	c.setSession(session)

	if err := session.SendText(InitialTurn, true); err != nil {
		slog.Warn("call: initial turn send failed", "call_id", p.CallID, "err", err)
	}

	readerCtx, cancel := context.WithCancel(e.ctx)
	done := make(chan struct{})
	c.setReader(cancel, done)
	go func() {
		defer close(done)
		e.runReader(readerCtx, c, session)
	}()

	slog.Info("voice session opened", "call_id", p.CallID)
	return session, nil
}

// pumpPhoneAudio forwards caller audio from one media WebSocket into the
// voice session until the socket closes or a stop frame arrives. Errors end
// the pump only; the next reconnect picks up where this one left off.
func (e *Engine) pumpPhoneAudio(c *Call, session s2s.Session, frames <-chan []byte, log *slog.Logger) {
	for data := range frames {
		frame, err := telnyx.ParseFrame(data)
		if err != nil {
			log.Warn("bad media frame", "err", err)
			continue
		}

		switch frame.Event {
		case telnyx.EventStart:
			c.setWireFormat(frame.Encoding, frame.SampleRate)
			log.Info("media stream started",
				"encoding", frame.Encoding, "sample_rate", frame.SampleRate)

		case telnyx.EventStop:
			log.Debug("media stream stopped")
			return

		case telnyx.EventMedia:
			pcm := frame.Payload
			encoding, rate := c.wireFormat()
			if encoding == "PCMU" {
				pcm = audio.DecodeULaw(pcm)
			}
			// The start frame's announced rate stays authoritative for both
			// encodings.
			pcm = audio.Resample(pcm, rate, voicePCMRate)

			e.metrics.AudioBytesIn.Add(e.ctx, int64(len(pcm)))
			if err := session.SendAudio(pcm); err != nil {
				log.Warn("send audio to session failed", "err", err)
				return
			}
		}
	}
}
