package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/secousse/backend/telemetry"
)

// ServerURL is the Twitch IRC websocket edge.
const ServerURL = "wss://irc-ws.chat.twitch.tv:443"

// Anonymous guest identity Twitch accepts for read-only connections.
const (
	anonPass = "SCHMOOPIE"
	anonNick = "justinfan12345"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultMailboxSize  = 100
)

// ErrNotConnected is returned by Say once the write loop has exited.
var ErrNotConnected = errors.New("chat: not connected")

// wire is the slice of *websocket.Conn the gateway needs. The read half and
// write half are owned exclusively by the read and write loops, so no locking
// guards frame I/O. Close may be called from any goroutine; it unblocks a
// pending read so the read loop can exit. Tests substitute a fake.
type wire interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Options tune a session. Zero values select the production defaults.
type Options struct {
	// AccessToken and Username select an authenticated connection. When either
	// is empty the session connects as the shared anonymous guest and cannot
	// send messages the server will accept.
	AccessToken string
	Username    string

	// PingInterval is the keepalive cadence of the write loop.
	PingInterval time.Duration
	// MailboxSize bounds how many outbound messages may be queued before Say
	// blocks.
	MailboxSize int
}

// Session is the handle returned by Connect. It owns the outbound mailbox
// and the transport's lifetime; frame I/O belongs to the session loops, which
// outlive any reference the caller keeps to the handle.
type Session struct {
	channel string
	conn    wire
	out     chan string
	quit    chan struct{} // closed by Close, asks the write loop to stop
	done    chan struct{} // closed when the write loop has exited

	mu     sync.Mutex
	closed bool // set by the write loop on exit, read by Say

	closeOnce sync.Once
}

// Say queues one line of chat text for transmission. It never touches the
// socket: it blocks only while the mailbox is full, and fails with
// ErrNotConnected once the write loop has exited. The enqueue and the loop's
// exit mark are serialized on the session mutex, so a message accepted here
// was accepted while the loop was still running; a queued message the loop
// never got to drain is dropped with the mailbox, same as after a mid-flight
// write failure.
func (s *Session) Say(text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	select {
	case s.out <- text:
		s.mu.Unlock()
		return nil
	default:
	}
	s.mu.Unlock()

	// Mailbox full: suspend until the loop drains a slot or exits.
	select {
	case <-s.done:
		return ErrNotConnected
	case s.out <- text:
		return nil
	}
}

// Close tears the session down: it signals the write loop and closes the
// transport, which fails the read loop's pending read so it emits its one
// Disconnected and exits. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		_ = s.conn.Close()
	})
}

// Channel returns the channel this session joined.
func (s *Session) Channel() string { return s.channel }

// Connect dials the chat edge, performs the capability/auth/join handshake
// and starts the session loops. The context bounds the dial only; the loops
// run until an I/O failure or Close. Any handshake write failure aborts the
// whole connect and no loops are started.
func Connect(ctx context.Context, channel string, sink Sink, opts Options) (*Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ServerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial chat edge: %w", err)
	}
	s, err := start(conn, channel, sink, opts)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// start performs the handshake on an established transport and launches the
// loops. Split from Connect so tests can drive a fake wire.
func start(conn wire, channel string, sink Sink, opts Options) (*Session, error) {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = defaultMailboxSize
	}

	handshake := []string{"CAP REQ :twitch.tv/tags twitch.tv/commands"}
	if opts.AccessToken != "" && opts.Username != "" {
		handshake = append(handshake,
			"PASS oauth:"+opts.AccessToken,
			"NICK "+strings.ToLower(opts.Username))
		slog.Info("chat: connecting authenticated", slog.String("user", opts.Username), slog.String("channel", channel))
	} else {
		handshake = append(handshake, "PASS "+anonPass, "NICK "+anonNick)
		slog.Info("chat: connecting anonymous", slog.String("channel", channel))
	}
	handshake = append(handshake, "JOIN #"+channel)

	for _, cmd := range handshake {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
			return nil, fmt.Errorf("chat handshake %q: %w", strings.Fields(cmd)[0], err)
		}
	}

	s := &Session{
		channel: channel,
		conn:    conn,
		out:     make(chan string, opts.MailboxSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	telemetry.IncChatSessions()
	go readLoop(conn, channel, sink)
	go writeLoop(conn, s, opts.PingInterval)
	return s, nil
}

// readLoop owns the read half of the transport. It consumes frames until the
// read fails, whether because the server closed the stream or Close tore the
// transport down, then emits exactly one Disconnected and stops. Failures
// here never touch the write loop.
func readLoop(conn wire, channel string, sink Sink) {
	defer func() {
		slog.Info("chat: read loop ended", slog.String("channel", channel))
		telemetry.IncChatDisconnects()
		emit(sink, Disconnected{Channel: channel})
	}()
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			slog.Error("chat: read error", slog.Any("err", err), slog.String("channel", channel))
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		// One transport frame may carry several newline-delimited IRC lines.
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, "\r")
			if line == "" {
				continue
			}
			handleLine(line, channel, sink)
		}
	}
}

// handleLine classifies one IRC line. USERNOTICE is checked before NOTICE
// because the marker contains it as a substring.
func handleLine(line, channel string, sink Sink) {
	switch {
	case strings.HasPrefix(line, "PING"):
		// Keepalive is owned by the write loop.
	case strings.Contains(line, "PRIVMSG"):
		msg := ParseMessage(line)
		if msg == nil {
			telemetry.IncChatDropped()
			return
		}
		msg.Channel = channel
		telemetry.IncChatMessages()
		emit(sink, *msg)
	case strings.Contains(line, "USERNOTICE"):
		// Subs, raids, announcements: logged, not yet forwarded to the sink.
		slog.Info("chat: usernotice", slog.String("line", line))
	case strings.Contains(line, "NOTICE"):
		slog.Info("chat: notice", slog.String("line", line))
		telemetry.IncChatNotices()
		emit(sink, Notice{Raw: line})
	}
}

// emit delivers one event. A panicking sink is swallowed so delivery stays
// fire-and-forget from the read loop's point of view.
func emit(sink Sink, ev Event) {
	if sink == nil {
		return
	}
	defer func() { _ = recover() }()
	sink(ev)
}

// writeLoop is the only writer on the transport. It multiplexes the keepalive
// ticker and the session mailbox through one select; whichever is ready first
// wins, with no further ordering between pings and caller messages. Any write
// failure ends the loop, after which Say reports ErrNotConnected.
func writeLoop(conn wire, s *Session, ping time.Duration) {
	defer func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		slog.Info("chat: write loop ended", slog.String("channel", s.channel))
	}()
	ticker := time.NewTicker(ping)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING :tmi.twitch.tv")); err != nil {
				slog.Error("chat: keepalive failed", slog.Any("err", err), slog.String("channel", s.channel))
				return
			}
			telemetry.IncChatPings()
		case text := <-s.out:
			frame := "PRIVMSG #" + s.channel + " :" + text
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				slog.Error("chat: send failed", slog.Any("err", err), slog.String("channel", s.channel))
				return
			}
			telemetry.IncChatSent()
		case <-s.quit:
			return
		}
	}
}
