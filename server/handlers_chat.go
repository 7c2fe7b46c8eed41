package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/secousse/backend/chat"
	"github.com/secousse/backend/db"
)

// HandleChatConnect joins a channel's chat. Any previous session is closed
// first; the frontend watches one stream at a time. With a stored user token
// the session authenticates as the user, otherwise it joins as an anonymous
// guest.
func (h *Handlers) HandleChatConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	if channel == "" {
		http.Error(w, "channel required", http.StatusBadRequest)
		return
	}

	opts := chat.Options{
		PingInterval: h.cfg.ChatPingInterval,
		MailboxSize:  h.cfg.ChatMailboxSize,
	}
	ctx := r.Context()
	if tok, _ := h.tokens.Get(ctx); tok != "" {
		opts.AccessToken = tok
		opts.Username = h.chatUsername(r)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := h.chat.Connect(connectCtx, channel, opts); err != nil {
		slog.Error("chat connect failed", slog.String("channel", channel), slog.Any("err", err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "connected",
		"channel":       channel,
		"authenticated": opts.AccessToken != "",
	})
}

// chatUsername resolves the login to chat as. The stored login lands in the
// kv table after OAuth; falling back to empty keeps the connect anonymous.
func (h *Handlers) chatUsername(r *http.Request) string {
	login, err := db.GetKV(r.Context(), h.db, "user_login")
	if err != nil {
		slog.Warn("user login lookup failed", slog.Any("err", err))
		return ""
	}
	return login
}

// HandleChatDisconnect leaves the current chat session, if any.
func (h *Handlers) HandleChatDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.chat.Disconnect()
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// HandleChatSend submits a message to the connected channel.
func (h *Handlers) HandleChatSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text required", http.StatusBadRequest)
		return
	}
	if err := h.chat.Say(req.Text); err != nil {
		if errors.Is(err, chat.ErrNotConnected) {
			http.Error(w, "not connected to chat", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// HandleChatEvents streams chat events over SSE. Named events: chat-message,
// chat-notice, chat-disconnected, plus a keepalive comment every 15s so
// proxies don't reap idle streams.
func (h *Handlers) HandleChatEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data); err != nil {
				slog.Warn("failed to write SSE event", slog.Any("err", err))
				return
			}
			flusher.Flush()
		}
	}
}
