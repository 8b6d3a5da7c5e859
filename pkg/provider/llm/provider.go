// Package llm defines the Provider interface for Large Language Model
// backends.
//
// The bridge uses an LLM for exactly one thing: turning a finished call
// transcript into a short summary for the orchestrator. The interface is
// therefore deliberately small — a single blocking completion plus static
// capability metadata — so that any backend (OpenAI, Anthropic, Gemini, a
// local Ollama instance) can serve it without coupling the bridge to a
// specific SDK.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/timetocall/callbridge/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages
	// and system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically
	// from the "user" role and drives the response.
	Messages []types.Message

	// Temperature controls output randomness in the range [0.0, 2.0].
	// Zero requests the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may
	// generate. Zero means use the provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected
	// before the conversation. Providers without a dedicated system slot
	// should prepend it as a "system"-role message.
	SystemPrompt string
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the model's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use and must propagate
// context cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled before
	// the completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing the underlying
	// model. The result is assumed constant for the lifetime of the
	// Provider instance.
	Capabilities() types.ModelCapabilities
}
