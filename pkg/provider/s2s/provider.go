// Package s2s defines the Provider interface for speech-to-speech voice
// backends.
//
// An s2s provider wraps a real-time voice AI service that accepts raw audio
// input and returns synthesised audio output in a single, stateful session —
// bypassing a separate STT → LLM → TTS pipeline entirely. The bridge opens
// exactly one session per phone call and keeps it alive across media
// WebSocket reconnections, so sessions must tolerate lifetimes of several
// minutes.
//
// All implementations must be safe for concurrent use.
package s2s

import "context"

// Event is one item of session output. A single event may carry audio, a
// transcript fragment, a turn boundary, or any combination — consumers must
// check every field. Events preserve the order the provider emitted them,
// which is what makes barge-in handling and turn assembly possible
// downstream.
type Event struct {
	// Audio is a chunk of synthesised speech in the provider's output
	// format (24 kHz 16-bit mono little-endian PCM for Gemini Live).
	// Nil when the event carries no audio.
	Audio []byte

	// InputTranscript is a fragment of the provider's running recognition
	// of caller speech. Fragments are partial; consumers accumulate them
	// until a turn boundary.
	InputTranscript string

	// OutputTranscript is a fragment of the text form of the model's
	// spoken output.
	OutputTranscript string

	// TurnComplete signals that the model finished its current response.
	TurnComplete bool

	// Interrupted signals that the caller barged in and the model
	// abandoned its current response. Audio already emitted for that
	// response should be considered stale.
	Interrupted bool
}

// Config is the initial configuration for a new session.
type Config struct {
	// Instructions is the system-level prompt that defines the agent's
	// task, identity, and behavioural constraints.
	Instructions string

	// Voice selects the provider's prebuilt voice. Empty means the
	// provider default.
	Voice string
}

// Session represents an open voice session. It is an interface so that the
// call engine can be tested against a scripted implementation without a
// live provider connection.
//
// The session is the hot path of the bridge — SendAudio and SendText must
// return quickly. Events are channel-based so the consumer controls pacing.
type Session interface {
	// SendAudio delivers a chunk of 16 kHz 16-bit mono little-endian PCM
	// caller audio to the model. Returns an error if the session is
	// closed or the transport rejects the write.
	SendAudio(pcm []byte) error

	// SendText injects a text turn into the conversation. With
	// turnComplete set the model responds immediately; this is how the
	// bridge tells the agent the call has been answered.
	SendText(text string, turnComplete bool) error

	// Events returns the channel on which session output arrives. The
	// channel is closed when the session ends; after it closes, Err
	// reports whether the session ended cleanly.
	Events() <-chan Event

	// Err returns the error that terminated the session, or nil if it
	// ended cleanly. Valid after the Events channel closes.
	Err() error

	// Close terminates the session and releases all resources. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any speech-to-speech backend.
//
// Implementations must be safe for concurrent use; the bridge opens one
// session per active call.
type Provider interface {
	// Connect establishes a new session with the given configuration.
	// The returned Session is ready to accept audio immediately. The
	// caller owns the Session and is responsible for calling Close.
	Connect(ctx context.Context, cfg Config) (Session, error)
}
