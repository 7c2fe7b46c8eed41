// Package chat implements the realtime Twitch IRC gateway: it holds a
// websocket connection to the chat edge, performs the CAP/PASS/NICK/JOIN
// handshake, then runs independent read and write loops for the life of the
// session. Parsed events are handed to a caller-provided sink; outbound text
// is submitted through a bounded mailbox on the Session handle.
package chat

// Event is one chat event delivered to the sink. The concrete types are
// Message, Notice, UserNotice and Disconnected; consumers switch on the type.
type Event interface {
	event()
}

// Badge is one (set id, version) pair from the badges tag, in tag order.
type Badge struct {
	Set     string `json:"set"`
	Version string `json:"version"`
}

// Message is a single user chat line. ID is the server-assigned message id
// consumers use for deduplication; it is empty when the frame omitted the tag.
// Color is empty when the user has no configured name color. Channel is filled
// in by the read loop, never by the parser.
type Message struct {
	ID      string  `json:"id"`
	User    string  `json:"user"`
	Body    string  `json:"message"`
	Color   string  `json:"color,omitempty"`
	Badges  []Badge `json:"badges"`
	Channel string  `json:"channel"`
}

// Notice is a server notice line (slow mode, sub-only, rate limit) passed
// through raw.
type Notice struct {
	Raw string `json:"raw"`
}

// UserNotice is a subscription/raid style announcement line. The read loop
// currently only logs these; the type is part of the union so the frontend
// can render them once it grows a view for them.
type UserNotice struct {
	Raw string `json:"raw"`
}

// Disconnected signals that the read loop has stopped, either because the
// socket read failed or the server closed the stream. Reconnecting is the
// consumer's decision; the gateway never retries on its own.
type Disconnected struct {
	Channel string `json:"channel"`
}

func (Message) event()      {}
func (Notice) event()       {}
func (UserNotice) event()   {}
func (Disconnected) event() {}

// Sink receives events from the read loop. Delivery is fire and forget: the
// read loop does not retry or slow down for a sink, and a sink that panics is
// ignored rather than treated as a connection failure.
type Sink func(Event)
