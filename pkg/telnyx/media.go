// Package telnyx provides the two halves of the Telnyx integration: the
// JSON media-stream framer used on the per-call WebSocket, and the REST
// control client used to dial, start streaming on, and hang up calls.
package telnyx

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Media stream event types. Events other than these are valid but carry
// nothing the bridge acts on.
const (
	EventStart = "start"
	EventMedia = "media"
	EventStop  = "stop"
)

// Stream format defaults applied when a start frame omits its media_format.
const (
	DefaultEncoding   = "L16"
	DefaultSampleRate = 16000
)

// Frame is one decoded message from the Telnyx media WebSocket.
type Frame struct {
	// Event is the frame type: "start", "media", "stop", or a pass-through
	// value for events the bridge ignores (e.g. "connected", "mark").
	Event string

	// StreamID identifies the media stream. Present on start and media frames.
	StreamID string

	// Payload is the decoded audio of a media frame, nil for other events.
	Payload []byte

	// Encoding and SampleRate describe the negotiated stream format. Set
	// only on start frames, with defaults applied for absent fields.
	Encoding   string
	SampleRate int
}

// wireFrame mirrors the JSON layout of Telnyx media stream messages.
type wireFrame struct {
	Event          string     `json:"event"`
	StreamID       string     `json:"stream_id,omitempty"`
	SequenceNumber string     `json:"sequence_number,omitempty"`
	Media          *wireMedia `json:"media,omitempty"`
	Start          *wireStart `json:"start,omitempty"`
}

type wireMedia struct {
	Payload string `json:"payload"`
}

type wireStart struct {
	MediaFormat *wireMediaFormat `json:"media_format,omitempty"`
}

type wireMediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// ParseFrame decodes one text message from the media WebSocket. Media
// payloads are base64-decoded; a media frame with a missing or malformed
// payload is an error, any other malformed JSON likewise.
func ParseFrame(data []byte) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		return Frame{}, fmt.Errorf("telnyx: parse frame: %w", err)
	}

	f := Frame{Event: wf.Event, StreamID: wf.StreamID}

	switch wf.Event {
	case EventMedia:
		if wf.Media == nil {
			return Frame{}, fmt.Errorf("telnyx: media frame without media object")
		}
		payload, err := base64.StdEncoding.DecodeString(wf.Media.Payload)
		if err != nil {
			return Frame{}, fmt.Errorf("telnyx: decode media payload: %w", err)
		}
		f.Payload = payload

	case EventStart:
		f.Encoding = DefaultEncoding
		f.SampleRate = DefaultSampleRate
		if wf.Start != nil && wf.Start.MediaFormat != nil {
			if wf.Start.MediaFormat.Encoding != "" {
				f.Encoding = wf.Start.MediaFormat.Encoding
			}
			if wf.Start.MediaFormat.SampleRate > 0 {
				f.SampleRate = wf.Start.MediaFormat.SampleRate
			}
		}
	}

	return f, nil
}

// MediaFrame encodes one outbound audio chunk as a media message ready to
// be written to the WebSocket as text.
func MediaFrame(audio []byte) []byte {
	msg := wireFrame{
		Event: EventMedia,
		Media: &wireMedia{Payload: base64.StdEncoding.EncodeToString(audio)},
	}
	data, _ := json.Marshal(msg)
	return data
}
