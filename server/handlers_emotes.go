package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

// HandleGlobalEmotes merges the third-party global emote sets (7TV, BTTV,
// FFZ) with Twitch's own global emotes when a user token is available.
func (h *Handlers) HandleGlobalEmotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	resp := map[string]any{
		"third_party": h.emotes.GlobalEmotes(ctx),
	}
	if h.twitch.IsAuthenticated(ctx) {
		if raw, err := h.twitch.GlobalEmotes(ctx); err == nil {
			resp["twitch"] = json.RawMessage(raw)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleChannelEmotes returns a channel's emotes (path /emotes/channel/{id}).
// Third-party sets are always included; Twitch channel emotes need a token.
func (h *Handlers) HandleChannelEmotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	channelID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/emotes/channel/"), "/")
	if channelID == "" {
		http.Error(w, "missing channel id", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	resp := map[string]any{
		"third_party": h.emotes.ChannelEmotes(ctx, channelID),
	}
	if h.twitch.IsAuthenticated(ctx) {
		if raw, err := h.twitch.ChannelEmotes(ctx, channelID); err == nil {
			resp["twitch"] = json.RawMessage(raw)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGlobalBadges returns Twitch's global chat badge set.
func (h *Handlers) HandleGlobalBadges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw, err := h.twitch.GlobalBadges(r.Context())
	if err != nil {
		http.Error(w, "failed to fetch badges", http.StatusBadGateway)
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}

// HandleChannelBadges returns a channel's badge set
// (path /badges/channel/{id}).
func (h *Handlers) HandleChannelBadges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	channelID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/badges/channel/"), "/")
	if channelID == "" {
		http.Error(w, "missing channel id", http.StatusBadRequest)
		return
	}
	raw, err := h.twitch.ChannelBadges(r.Context(), channelID)
	if err != nil {
		http.Error(w, "failed to fetch badges", http.StatusBadGateway)
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}
