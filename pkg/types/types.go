// Package types defines the shared types used across all callbridge packages.
//
// These types form the lingua franca between the call engine, providers, and
// the callback layer. They are intentionally minimal — each package defines its
// own domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

import "time"

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	// SpeakerAgent is the AI voice agent driving the call.
	SpeakerAgent Speaker = "agent"

	// SpeakerCallee is the human on the far end of the phone call.
	SpeakerCallee Speaker = "callee"
)

// TranscriptEntry is one completed conversational turn of a phone call.
// Entries are appended in the order turns finish, so a transcript read
// top-to-bottom reproduces the conversation.
type TranscriptEntry struct {
	// Speaker identifies who spoke this turn.
	Speaker Speaker `json:"speaker"`

	// Text is the turn's text with leading and trailing whitespace removed.
	Text string `json:"text"`

	// Timestamp is the UTC time the turn was flushed.
	Timestamp time.Time `json:"timestamp"`
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (for multi-speaker contexts).
	Name string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
