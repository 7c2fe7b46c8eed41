package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/secousse/backend/chat"
	"github.com/secousse/backend/telemetry"
)

// hubEvent is one SSE frame: a named event plus its JSON payload.
type hubEvent struct {
	Name string
	Data []byte
}

// Hub fans chat events out to SSE subscribers. Slow subscribers lose events
// rather than stalling the chat read loop.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan hubEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan hubEvent]struct{})}
}

// Subscribe registers a new subscriber channel. Call the returned cancel
// function when the client goes away.
func (h *Hub) Subscribe() (<-chan hubEvent, func()) {
	ch := make(chan hubEvent, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	telemetry.SetSSESubscribers(n)

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		n := len(h.subs)
		h.mu.Unlock()
		telemetry.SetSSESubscribers(n)
	}
}

// Publish sends a named event to all subscribers without blocking.
func (h *Hub) Publish(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("failed to marshal hub event", slog.String("event", name), slog.Any("err", err))
		return
	}
	ev := hubEvent{Name: name, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is backed up; drop rather than block the publisher.
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ChatSink adapts the hub to the chat gateway's event callback. Message,
// notice and disconnect events become the SSE events the frontend listens
// for.
func ChatSink(hub *Hub) chat.Sink {
	return func(ev chat.Event) {
		switch e := ev.(type) {
		case chat.Message:
			hub.Publish("chat-message", e)
		case chat.Notice:
			hub.Publish("chat-notice", e)
		case chat.UserNotice:
			// The read loop is currently log-only for USERNOTICE; this arm
			// activates once it starts forwarding them.
			hub.Publish("chat-usernotice", e)
		case chat.Disconnected:
			hub.Publish("chat-disconnected", e)
		}
	}
}
