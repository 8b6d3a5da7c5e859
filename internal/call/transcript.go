package call

import (
	"strings"
	"sync"
	"time"

	"github.com/timetocall/callbridge/pkg/types"
)

// assembler turns the model's interleaved transcript fragments into whole
// conversational turns. The model emits speaker-alternating streams in small
// fragments; appending each fragment directly would produce one transcript
// entry per syllable. Instead fragments accumulate per speaker, and a
// fragment from the other speaker (or a turn boundary) flushes the
// accumulated buffer as a single entry.
type assembler struct {
	mu     sync.Mutex
	agent  strings.Builder
	callee strings.Builder

	// sink receives each flushed entry. Called with the lock held, so it
	// must not call back into the assembler.
	sink func(types.TranscriptEntry)

	// now is replaceable for tests.
	now func() time.Time
}

func newAssembler(sink func(types.TranscriptEntry)) *assembler {
	return &assembler{sink: sink, now: time.Now}
}

// AddAgent appends a fragment of the agent's speech, flushing any pending
// callee turn first.
func (a *assembler) AddAgent(fragment string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked(types.SpeakerCallee, &a.callee)
	a.agent.WriteString(fragment)
}

// AddCallee appends a fragment of the callee's speech, flushing any pending
// agent turn first.
func (a *assembler) AddCallee(fragment string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked(types.SpeakerAgent, &a.agent)
	a.callee.WriteString(fragment)
}

// FlushAgent emits the pending agent turn, if any. Called on turn_complete
// and interrupted events.
func (a *assembler) FlushAgent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked(types.SpeakerAgent, &a.agent)
}

// FlushAll emits both pending turns. Called once during call completion.
func (a *assembler) FlushAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked(types.SpeakerAgent, &a.agent)
	a.flushLocked(types.SpeakerCallee, &a.callee)
}

func (a *assembler) flushLocked(speaker types.Speaker, buf *strings.Builder) {
	text := strings.TrimSpace(buf.String())
	buf.Reset()
	if text == "" {
		return
	}
	a.sink(types.TranscriptEntry{
		Speaker:   speaker,
		Text:      text,
		Timestamp: a.now().UTC(),
	})
}
