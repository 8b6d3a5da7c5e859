package summary_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/timetocall/callbridge/internal/summary"
	"github.com/timetocall/callbridge/pkg/provider/llm"
	llmmock "github.com/timetocall/callbridge/pkg/provider/llm/mock"
	"github.com/timetocall/callbridge/pkg/types"
)

func sampleTranscript() []types.TranscriptEntry {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []types.TranscriptEntry{
		{Speaker: types.SpeakerAgent, Text: "Hi, I'm calling to confirm your appointment.", Timestamp: ts},
		{Speaker: types.SpeakerCallee, Text: "Yes, Tuesday works for me.", Timestamp: ts.Add(5 * time.Second)},
	}
}

func TestGenerate_EmptyTranscript(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{}
	gen := summary.New(p)

	got, err := gen.Generate(t.Context(), nil)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != summary.NoConversation {
		t.Errorf("summary = %q, want %q", got, summary.NoConversation)
	}
	if len(p.Calls()) != 0 {
		t.Error("provider should not be called for an empty transcript")
	}
}

func TestGenerate_PromptContainsTranscript(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Appointment confirmed for Tuesday."},
	}
	gen := summary.New(p)

	got, err := gen.Generate(t.Context(), sampleTranscript())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != "Appointment confirmed for Tuesday." {
		t.Errorf("summary = %q", got)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete calls = %d, want 1", len(calls))
	}
	prompt := calls[0].Req.Messages[0].Content
	for _, want := range []string{
		"Summarize this phone call transcript",
		"2-3 sentences",
		"AI Agent: Hi, I'm calling to confirm your appointment.",
		"Callee: Yes, Tuesday works for me.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGenerate_ProviderError(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	gen := summary.New(p)

	_, err := gen.Generate(t.Context(), sampleTranscript())
	if err == nil {
		t.Fatal("expected error from failing provider")
	}
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "  \n"},
	}
	gen := summary.New(p)

	got, err := gen.Generate(t.Context(), sampleTranscript())
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != "Call completed." {
		t.Errorf("summary = %q, want fallback", got)
	}
}

func TestFormatTranscript(t *testing.T) {
	t.Parallel()

	got := summary.FormatTranscript(sampleTranscript())
	want := "AI Agent: Hi, I'm calling to confirm your appointment.\nCallee: Yes, Tuesday works for me."
	if got != want {
		t.Errorf("FormatTranscript() = %q, want %q", got, want)
	}
}
