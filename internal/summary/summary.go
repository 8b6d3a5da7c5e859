// Package summary turns a finished call transcript into a short natural
// language summary using an LLM provider.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/timetocall/callbridge/pkg/provider/llm"
	"github.com/timetocall/callbridge/pkg/types"
)

const (
	// NoConversation is returned when the transcript holds no turns.
	NoConversation = "No conversation was recorded."

	// defaultSummary covers the case where the model replies with nothing.
	defaultSummary = "Call completed."

	maxSummaryTokens = 256
)

// Generator produces call summaries through an [llm.Provider].
type Generator struct {
	provider llm.Provider
}

// New creates a [Generator] backed by the given provider.
func New(provider llm.Provider) *Generator {
	return &Generator{provider: provider}
}

// Generate summarizes the transcript in a few sentences.
func (g *Generator) Generate(ctx context.Context, transcript []types.TranscriptEntry) (string, error) {
	if len(transcript) == 0 {
		return NoConversation, nil
	}

	prompt := fmt.Sprintf(
		"Summarize this phone call transcript concisely, focusing on the outcome and key information exchanged. Keep it to 2-3 sentences.\n\n%s",
		FormatTranscript(transcript),
	)

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Messages:  []types.Message{{Role: "user", Content: prompt}},
		MaxTokens: maxSummaryTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summary: generate: %w", err)
	}

	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return defaultSummary, nil
	}
	return strings.TrimSpace(resp.Content), nil
}

// FormatTranscript renders a transcript as labeled lines for prompting.
func FormatTranscript(transcript []types.TranscriptEntry) string {
	var b strings.Builder
	for _, entry := range transcript {
		label := "Callee"
		if entry.Speaker == types.SpeakerAgent {
			label = "AI Agent"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, entry.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
