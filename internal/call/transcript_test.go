package call

import (
	"testing"
	"time"

	"github.com/timetocall/callbridge/pkg/types"
)

func collectAssembler() (*assembler, *[]types.TranscriptEntry) {
	var entries []types.TranscriptEntry
	a := newAssembler(func(e types.TranscriptEntry) {
		entries = append(entries, e)
	})
	a.now = func() time.Time {
		return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	}
	return a, &entries
}

func TestAssembler_FragmentsJoinIntoTurns(t *testing.T) {
	t.Parallel()

	a, entries := collectAssembler()

	a.AddAgent("Hel")
	a.AddAgent("lo, ")
	a.AddAgent("this is a test call.")
	if len(*entries) != 0 {
		t.Fatalf("nothing should flush before a boundary, got %v", *entries)
	}

	a.FlushAgent()
	if len(*entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(*entries))
	}
	if (*entries)[0].Speaker != types.SpeakerAgent {
		t.Errorf("speaker = %s, want agent", (*entries)[0].Speaker)
	}
	if (*entries)[0].Text != "Hello, this is a test call." {
		t.Errorf("text = %q", (*entries)[0].Text)
	}
}

func TestAssembler_SpeakerChangeFlushes(t *testing.T) {
	t.Parallel()

	a, entries := collectAssembler()

	a.AddAgent("How can I help?")
	a.AddCallee("I'd like ")
	a.AddCallee("a table for two.")
	a.AddAgent("Certainly.")

	// The callee fragment flushed the agent turn; the next agent fragment
	// flushed the callee turn.
	if len(*entries) != 2 {
		t.Fatalf("entries = %d, want 2: %v", len(*entries), *entries)
	}
	if (*entries)[0].Speaker != types.SpeakerAgent || (*entries)[0].Text != "How can I help?" {
		t.Errorf("entry 0 = %+v", (*entries)[0])
	}
	if (*entries)[1].Speaker != types.SpeakerCallee || (*entries)[1].Text != "I'd like a table for two." {
		t.Errorf("entry 1 = %+v", (*entries)[1])
	}
}

func TestAssembler_EmptyFlushEmitsNothing(t *testing.T) {
	t.Parallel()

	a, entries := collectAssembler()

	a.FlushAgent()
	a.FlushAll()
	a.AddAgent("   ")
	a.FlushAgent()

	if len(*entries) != 0 {
		t.Errorf("whitespace-only buffers must not emit entries: %v", *entries)
	}
}

func TestAssembler_FlushAllEmitsBoth(t *testing.T) {
	t.Parallel()

	a, entries := collectAssembler()

	a.AddAgent("Goodbye. ")
	a.AddCallee("Thanks, bye.")
	// AddCallee flushed the agent turn already.
	a.FlushAll()

	if len(*entries) != 2 {
		t.Fatalf("entries = %d, want 2: %v", len(*entries), *entries)
	}
	if (*entries)[1].Text != "Thanks, bye." {
		t.Errorf("entry 1 text = %q", (*entries)[1].Text)
	}
}

func TestAssembler_TrimsAndStampsUTC(t *testing.T) {
	t.Parallel()

	a, entries := collectAssembler()

	a.AddCallee("  hello?  ")
	a.FlushAll()

	if len(*entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(*entries))
	}
	e := (*entries)[0]
	if e.Text != "hello?" {
		t.Errorf("text = %q, want trimmed", e.Text)
	}
	if e.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp location = %v, want UTC", e.Timestamp.Location())
	}
}
