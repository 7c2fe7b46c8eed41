package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/secousse/backend/db"
	"github.com/secousse/backend/telemetry"
	"github.com/secousse/backend/twitchapi"
)

// HandleTopStreams returns the most-viewed live streams. Query param "limit"
// caps the page size (default 30).
func (h *Handlers) HandleTopStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 30)
	if limit < 1 || limit > 100 {
		limit = 30
	}

	raw, err := h.twitch.TopStreams(r.Context(), limit)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("top streams fetch failed", slog.Any("err", err), slog.String("component", "streams"))
		http.Error(w, "failed to fetch top streams", http.StatusBadGateway)
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}

// HandleFollowedStreams returns live streams followed by the logged-in viewer.
func (h *Handlers) HandleFollowedStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	userID, err := h.viewerID(r)
	if err != nil {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	raw, err := h.twitch.FollowedStreams(ctx, userID)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("followed streams fetch failed", slog.Any("err", err), slog.String("component", "streams"))
		http.Error(w, "failed to fetch followed streams", http.StatusBadGateway)
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}

// viewerID resolves the logged-in viewer's numeric id, preferring the cached
// value written at login and falling back to a Helix lookup.
func (h *Handlers) viewerID(r *http.Request) (string, error) {
	ctx := r.Context()
	if id, err := db.GetKV(ctx, h.db, "user_id"); err == nil && id != "" {
		return id, nil
	}

	raw, err := h.twitch.SelfInfo(ctx)
	if err != nil {
		return "", err
	}
	var me struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &me); err != nil {
		return "", err
	}
	if me.ID != "" {
		_ = db.SetKV(ctx, h.db, "user_id", me.ID)
	}
	return me.ID, nil
}

// HandleChannel returns channel and stream info for a single login
// (path /channels/{login}).
func (h *Handlers) HandleChannel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	login := strings.Trim(strings.TrimPrefix(r.URL.Path, "/channels/"), "/")
	if login == "" {
		http.Error(w, "missing channel login", http.StatusBadRequest)
		return
	}

	raw, err := h.twitch.UserInfo(r.Context(), strings.ToLower(login))
	if err != nil {
		if errors.Is(err, twitchapi.ErrNotFound) {
			http.Error(w, "channel not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch channel", http.StatusBadGateway)
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}

// HandleChannels returns info for several logins at once
// (?logins=a,b,c). Keeps the frontend's sidebar refresh to one request.
func (h *Handlers) HandleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	param := r.URL.Query().Get("logins")
	if param == "" {
		http.Error(w, "missing logins", http.StatusBadRequest)
		return
	}
	var logins []string
	for _, l := range strings.Split(param, ",") {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" {
			logins = append(logins, l)
		}
	}
	if len(logins) == 0 {
		http.Error(w, "missing logins", http.StatusBadRequest)
		return
	}

	raw, err := h.twitch.UsersInfo(r.Context(), logins)
	if err != nil {
		http.Error(w, "failed to fetch channels", http.StatusBadGateway)
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}

// HandleSearch searches channels by name (?q=).
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "missing query", http.StatusBadRequest)
		return
	}

	raw, err := h.twitch.SearchChannels(r.Context(), query)
	if err != nil {
		http.Error(w, "search failed", http.StatusBadGateway)
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}

// HandlePlayback resolves a playback access token and returns the usher HLS
// master playlist URL for a channel (path /playback/{login}).
func (h *Handlers) HandlePlayback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	login := strings.ToLower(strings.Trim(strings.TrimPrefix(r.URL.Path, "/playback/"), "/"))
	if login == "" {
		http.Error(w, "missing channel login", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	token, err := h.twitch.PlaybackAccessToken(ctx, login)
	if err != nil {
		if errors.Is(err, twitchapi.ErrNotFound) {
			http.Error(w, "channel is offline or does not exist", http.StatusNotFound)
			return
		}
		telemetry.LoggerWithCorr(ctx).Error("playback token fetch failed", slog.String("channel", login), slog.Any("err", err), slog.String("component", "playback"))
		http.Error(w, "failed to fetch playback token", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"url": twitchapi.UsherURL(login, token),
	})
}

// HandleWatch sets (POST) or clears (DELETE) the reported watch state used by
// the minute-watched loop.
func (h *Handlers) HandleWatch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var ws watchState
		if err := json.NewDecoder(r.Body).Decode(&ws); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if ws.ChannelLogin == "" || ws.ChannelID == "" {
			http.Error(w, "channel_login and channel_id are required", http.StatusBadRequest)
			return
		}
		ws.ChannelLogin = strings.ToLower(ws.ChannelLogin)
		if ws.UserID == "" {
			// Anonymous viewers report a random device-scoped id, like the
			// web player does for logged-out sessions.
			if id, err := db.GetKV(r.Context(), h.db, "user_id"); err == nil {
				ws.UserID = id
			}
		}
		h.setWatch(&ws)
		writeJSON(w, http.StatusOK, &ws)
	case http.MethodDelete:
		h.setWatch(nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
