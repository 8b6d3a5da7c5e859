// Package mock provides a scripted s2s implementation for testing the call
// engine without a live provider connection.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/timetocall/callbridge/pkg/provider/s2s"
)

// Compile-time assertions.
var _ s2s.Provider = (*Provider)(nil)
var _ s2s.Session = (*Session)(nil)

// TextTurn records one SendText call.
type TextTurn struct {
	Text         string
	TurnComplete bool
}

// Session is a scripted s2s.Session. Tests feed it output with Emit and
// inspect what the engine sent with SentAudio and SentTexts.
type Session struct {
	events chan s2s.Event

	mu     sync.Mutex
	audio  [][]byte
	texts  []TextTurn
	closed bool
	errVal error

	closeOnce sync.Once
}

// NewSession returns an open scripted session.
func NewSession() *Session {
	return &Session{events: make(chan s2s.Event, 64)}
}

// Emit delivers one event to the session consumer.
func (s *Session) Emit(ev s2s.Event) {
	s.events <- ev
}

// End closes the events channel with the given terminal error (nil for a
// clean end) without marking the session closed, mimicking a provider-side
// session failure.
func (s *Session) End(err error) {
	s.mu.Lock()
	if s.errVal == nil {
		s.errVal = err
	}
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.events) })
}

// SendAudio implements s2s.Session.
func (s *Session) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mock: session closed")
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.audio = append(s.audio, cp)
	return nil
}

// SendText implements s2s.Session.
func (s *Session) SendText(text string, turnComplete bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mock: session closed")
	}
	s.texts = append(s.texts, TextTurn{Text: text, TurnComplete: turnComplete})
	return nil
}

// Events implements s2s.Session.
func (s *Session) Events() <-chan s2s.Event { return s.events }

// Err implements s2s.Session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Close implements s2s.Session. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

// SentAudio returns copies of all audio chunks sent so far.
func (s *Session) SentAudio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.audio))
	copy(out, s.audio)
	return out
}

// SentTexts returns all text turns sent so far.
func (s *Session) SentTexts() []TextTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TextTurn, len(s.texts))
	copy(out, s.texts)
	return out
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Provider is a scripted s2s.Provider that hands out pre-built sessions.
type Provider struct {
	// ConnectErr, when non-nil, is returned by every Connect call.
	ConnectErr error

	mu       sync.Mutex
	sessions []*Session
	configs  []s2s.Config
}

// NewProvider returns an empty scripted provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Connect implements s2s.Provider. Each call creates and records a new
// scripted session.
func (p *Provider) Connect(_ context.Context, cfg s2s.Config) (s2s.Session, error) {
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	sess := NewSession()
	p.mu.Lock()
	p.sessions = append(p.sessions, sess)
	p.configs = append(p.configs, cfg)
	p.mu.Unlock()
	return sess, nil
}

// Sessions returns all sessions handed out so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Configs returns the Config passed to each Connect call.
func (p *Provider) Configs() []s2s.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]s2s.Config, len(p.configs))
	copy(out, p.configs)
	return out
}
