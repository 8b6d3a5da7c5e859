// Package call implements the per-call bridge engine: dialing through the
// carrier, pumping caller audio into the voice session, pacing synthesised
// audio back onto the media WebSocket, assembling the transcript, and
// reporting lifecycle events to the orchestrator.
package call

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/timetocall/callbridge/pkg/provider/s2s"
	"github.com/timetocall/callbridge/pkg/telnyx"
	"github.com/timetocall/callbridge/pkg/types"
)

// Status is the lifecycle state of a call. Transitions are monotonic along
// pending → dialing → ringing → connected → {completed, failed}; terminal
// states absorb all further transitions.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDialing   Status = "dialing"
	StatusRinging   Status = "ringing"
	StatusConnected Status = "connected"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// statusRank orders states for the monotonic transition guard.
var statusRank = map[Status]int{
	StatusPending:   0,
	StatusDialing:   1,
	StatusRinging:   2,
	StatusConnected: 3,
	StatusCompleted: 4,
	StatusFailed:    4,
}

// Params are the immutable parameters of one call, fixed at start time.
type Params struct {
	// CallID is the orchestrator-assigned identifier for this call.
	CallID string

	// PhoneNumber is the E.164 destination number.
	PhoneNumber string

	// Briefing describes the task the agent must accomplish on the call.
	Briefing string

	// Language is the conversation language name, or "auto" to mirror the
	// callee. Empty means "auto".
	Language string

	// UserName is who the agent claims to be calling on behalf of.
	// Empty means "the user".
	UserName string

	// CallbackURL receives lifecycle events for this call.
	CallbackURL string
}

// Call is the mutable record of one active call. It is created by the engine
// on start and removed from the registry exactly once on completion.
type Call struct {
	params Params

	mu          sync.Mutex
	controlID   string
	status      Status
	connectedAt time.Time
	transcript  []types.TranscriptEntry
	session     s2s.Session
	wireEnc     string
	wireRate    int

	// answered is closed when the carrier reports call.answered.
	answered   chan struct{}
	answerOnce sync.Once

	// openOnce admits exactly one media handler to session opening;
	// sessionReady is closed once that attempt finishes, either way.
	openOnce     sync.Once
	sessionReady chan struct{}

	// ws is the media WebSocket currently attached to the call. The reader
	// snapshots it per audio batch; media handlers publish and clear it.
	ws atomic.Pointer[websocket.Conn]

	// reader lifecycle, owned by the engine. Guarded by mu.
	readerCancel func()
	readerDone   chan struct{}

	assembler *assembler

	chunksSent    atomic.Int64
	chunksDropped atomic.Int64
}

// newCall builds a pending call record with wire format defaults.
func newCall(p Params) *Call {
	if p.Language == "" {
		p.Language = "auto"
	}
	if p.UserName == "" {
		p.UserName = "the user"
	}
	return &Call{
		params:       p,
		status:       StatusPending,
		wireEnc:      telnyx.DefaultEncoding,
		wireRate:     telnyx.DefaultSampleRate,
		answered:     make(chan struct{}),
		sessionReady: make(chan struct{}),
	}
}

// CallID returns the orchestrator-assigned call identifier.
func (c *Call) CallID() string { return c.params.CallID }

// ControlID returns the carrier's call control identifier, or "" before the
// dial has been accepted.
func (c *Call) ControlID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controlID
}

func (c *Call) setControlID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controlID = id
}

// Params returns the immutable call parameters.
func (c *Call) Params() Params { return c.params }

// Status returns the current lifecycle state.
func (c *Call) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// advance moves the call to next if that is a forward transition. It reports
// whether the state changed. Terminal states never change.
func (c *Call) advance(next Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.Terminal() || statusRank[next] <= statusRank[c.status] {
		return false
	}
	c.status = next
	if next == StatusConnected {
		c.connectedAt = time.Now()
	}
	return true
}

// finalize forces the terminal status. Used only by completion, which is
// already serialised by registry removal.
func (c *Call) finalize(failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if failed {
		c.status = StatusFailed
	} else {
		c.status = StatusCompleted
	}
}

// ConnectedAt returns when the call reached connected, or the zero time.
func (c *Call) ConnectedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedAt
}

// SignalAnswered marks the call as answered by the carrier. Safe to call
// more than once.
func (c *Call) SignalAnswered() {
	c.answerOnce.Do(func() { close(c.answered) })
}

// Answered returns a channel closed once the carrier reports answer.
func (c *Call) Answered() <-chan struct{} { return c.answered }

// Session returns the voice session, or nil before the first media WS.
func (c *Call) Session() s2s.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Call) setSession(s s2s.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// claimSessionOpen reports whether the caller won the right to open the voice
// session. Several media handlers can wake on answer at once; exactly one
// wins, the rest wait on SessionReady and reuse the winner's session.
func (c *Call) claimSessionOpen() bool {
	won := false
	c.openOnce.Do(func() { won = true })
	return won
}

// signalSessionReady unblocks handlers waiting in SessionReady. Called once
// by the winning handler after its open attempt finishes.
func (c *Call) signalSessionReady() { close(c.sessionReady) }

// SessionReady returns a channel closed once the session open attempt has
// finished. Session reports the outcome: nil means the open failed.
func (c *Call) SessionReady() <-chan struct{} { return c.sessionReady }

// setReader records the persistent reader's cancel func and done channel.
func (c *Call) setReader(cancel func(), done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readerCancel = cancel
	c.readerDone = done
}

// reader returns the reader lifecycle handles, nil before the reader starts.
func (c *Call) reader() (func(), chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readerCancel, c.readerDone
}

// setWireFormat records the stream format announced by a start frame.
func (c *Call) setWireFormat(encoding string, sampleRate int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if encoding != "" {
		c.wireEnc = encoding
	}
	if sampleRate > 0 {
		c.wireRate = sampleRate
	}
}

// wireFormat returns the negotiated media stream encoding and sample rate.
func (c *Call) wireFormat() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wireEnc, c.wireRate
}

// CurrentWS returns the media WebSocket currently attached to the call, or
// nil between carrier reconnects.
func (c *Call) CurrentWS() *websocket.Conn { return c.ws.Load() }

// publishWS attaches conn as the call's current media WebSocket.
func (c *Call) publishWS(conn *websocket.Conn) { c.ws.Store(conn) }

// clearWS detaches conn if it is still the current WebSocket. A reconnect
// may already have replaced it, in which case the newer one stays.
func (c *Call) clearWS(conn *websocket.Conn) {
	c.ws.CompareAndSwap(conn, nil)
}

// appendTranscript adds one flushed turn to the record.
func (c *Call) appendTranscript(entry types.TranscriptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = append(c.transcript, entry)
}

// Transcript returns a copy of the turns assembled so far.
func (c *Call) Transcript() []types.TranscriptEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.TranscriptEntry, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// ChunksSent returns how many audio chunks were written to the carrier.
func (c *Call) ChunksSent() int64 { return c.chunksSent.Load() }

// ChunksDropped returns how many audio chunks were discarded while no media
// WebSocket was attached.
func (c *Call) ChunksDropped() int64 { return c.chunksDropped.Load() }
