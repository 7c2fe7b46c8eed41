package chat

import (
	"context"
	"sync"
)

// Manager enforces the single-active-session contract: at most one session per
// process, and starting a session for a new (or the same) channel supersedes
// the previous one before the new loops take over. Without this, two write
// loops could emit for the same identity concurrently.
type Manager struct {
	sink Sink

	// dial is swapped out by tests; production uses Connect.
	dial func(ctx context.Context, channel string, sink Sink, opts Options) (*Session, error)

	mu      sync.Mutex
	current *Session
}

// NewManager returns a manager whose sessions all deliver into sink.
func NewManager(sink Sink) *Manager {
	return &Manager{sink: sink, dial: Connect}
}

// Connect closes any previous session, then establishes a new one for channel.
// Closing tears down the old transport, so the superseded read loop fails its
// next read, emits its Disconnected and stops feeding the sink; no events for
// the old channel interleave with the new session's beyond that point.
// When the dial fails no session is active and Say reports ErrNotConnected.
func (m *Manager) Connect(ctx context.Context, channel string, opts Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
	s, err := m.dial(ctx, channel, m.sink, opts)
	if err != nil {
		return err
	}
	m.current = s
	return nil
}

// Say forwards one line of text to the active session.
func (m *Manager) Say(text string) error {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}
	return s.Say(text)
}

// Disconnect closes the active session, if any.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}

// Channel reports the channel of the active session, or "" when disconnected.
func (m *Manager) Channel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.Channel()
}
