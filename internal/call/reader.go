package call

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/timetocall/callbridge/internal/config"
	"github.com/timetocall/callbridge/pkg/audio"
	"github.com/timetocall/callbridge/pkg/provider/s2s"
	"github.com/timetocall/callbridge/pkg/telnyx"
)

// sessionPCMRate is the sample rate of audio the voice session emits.
const sessionPCMRate = 24000

// chunkInterval matches the carrier's 20 ms packetisation.
const chunkInterval = 20 * time.Millisecond

// runReader is the persistent AI→phone loop: exactly one per call, running
// from session open to completion regardless of media WebSocket churn.
func (e *Engine) runReader(ctx context.Context, c *Call, session s2s.Session) {
	log := slog.With("call_id", c.CallID())

	// nextSend is the pacing clock: synthesised audio arrives in bursts far
	// faster than real time and must be metered out at 20 ms per chunk or
	// the carrier clips it.
	var nextSend time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, open := <-session.Events():
			if !open {
				if err := session.Err(); err != nil {
					// A dead session mid-call cannot recover; fail now
					// instead of letting the call drift to the safety timer.
					log.Error("voice session ended with error", "err", err)
					go e.Complete(e.ctx, c.CallID(), true)
				}
				return
			}

			// Hard cap on conversation length, enforced here so a chatty
			// model cannot outrun the safety timer.
			if connectedAt := c.ConnectedAt(); !connectedAt.IsZero() &&
				time.Since(connectedAt) > e.maxCallDuration {
				log.Warn("max call duration reached")
				go e.EndCall(e.ctx, c.CallID())
				return
			}

			if ev.Interrupted {
				// The caller barged in: pending agent speech is stale.
				// Reset the pacing clock so the next response starts fresh.
				nextSend = time.Time{}
				c.assembler.FlushAgent()
			}
			if ev.OutputTranscript != "" {
				c.assembler.AddAgent(ev.OutputTranscript)
			}
			if ev.InputTranscript != "" {
				c.assembler.AddCallee(ev.InputTranscript)
			}
			if ev.TurnComplete {
				c.assembler.FlushAgent()
			}
			if len(ev.Audio) > 0 {
				e.sendPaced(ctx, c, ev.Audio, &nextSend, log)
			}
		}
	}
}

// sendPaced converts one burst of session audio to the wire format and
// writes it to the current media WebSocket in real-time 20 ms chunks.
func (e *Engine) sendPaced(ctx context.Context, c *Call, pcm []byte, nextSend *time.Time, log *slog.Logger) {
	_, wireRate := c.wireFormat()

	out := audio.Resample(pcm, sessionPCMRate, wireRate)
	if e.byteOrder == config.BigEndian {
		out = audio.SwapBytes(out)
	}
	chunks := audio.Chunks(out, audio.ChunkSize(wireRate))

	// Snapshot the socket once per batch. A reconnect mid-batch aborts the
	// remainder; the model's next burst lands on the new socket.
	ws := c.CurrentWS()
	if ws == nil {
		c.chunksDropped.Add(int64(len(chunks)))
		e.metrics.AudioChunksDropped.Add(ctx, int64(len(chunks)))
		return
	}

	for _, chunk := range chunks {
		if c.CurrentWS() != ws {
			return
		}

		now := time.Now()
		if nextSend.IsZero() || nextSend.Before(now) {
			// First chunk, or we fell behind: resync without carrying debt.
			*nextSend = now
		} else {
			timer := time.NewTimer(nextSend.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		if err := ws.Write(ctx, websocket.MessageText, telnyx.MediaFrame(chunk)); err != nil {
			log.Debug("media ws write failed", "err", err)
			return
		}
		c.chunksSent.Add(1)
		e.metrics.AudioChunksSent.Add(ctx, 1)
		e.metrics.AudioBytesOut.Add(ctx, int64(len(chunk)))

		*nextSend = nextSend.Add(chunkInterval)
	}
}
