package server

import (
	"context"
	"net/http"
	"time"
)

// HandleHealthz is a liveness probe: process is up and the database answers.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		http.Error(w, "db unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz is a readiness probe: same as healthz today, kept separate so
// deploys can gate traffic on it independently.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	h.HandleHealthz(w, r)
}

// HandleStatus reports an operator-facing snapshot: chat session, auth state,
// SSE subscribers, current watch target.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	resp := map[string]any{
		"chat_channel":    h.chat.Channel(),
		"authenticated":   h.twitch.IsAuthenticated(ctx),
		"sse_subscribers": h.hub.Subscribers(),
	}
	if ws := h.currentWatch(); ws != nil {
		resp["watching"] = ws
	}
	writeJSON(w, http.StatusOK, resp)
}
