package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/secousse/backend/telemetry"
)

// HandleSelf returns the logged-in viewer's Helix profile.
func (h *Handlers) HandleSelf(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	if !h.twitch.IsAuthenticated(ctx) {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	raw, err := h.twitch.SelfInfo(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("self info fetch failed", slog.Any("err", err), slog.String("component", "users"))
		http.Error(w, "failed to fetch viewer", http.StatusBadGateway)
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}

type followRequest struct {
	TargetID string `json:"target_id"`
}

// HandleFollow follows a channel on behalf of the logged-in viewer.
func (h *Handlers) HandleFollow(w http.ResponseWriter, r *http.Request) {
	h.handleFollowChange(w, r, h.twitch.FollowUser, "follow")
}

// HandleUnfollow removes a follow.
func (h *Handlers) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	h.handleFollowChange(w, r, h.twitch.UnfollowUser, "unfollow")
}

func (h *Handlers) handleFollowChange(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error, action string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	if !h.twitch.IsAuthenticated(ctx) {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	req.TargetID = strings.TrimSpace(req.TargetID)
	if req.TargetID == "" {
		http.Error(w, "target_id is required", http.StatusBadRequest)
		return
	}

	if err := op(ctx, req.TargetID); err != nil {
		telemetry.LoggerWithCorr(ctx).Error(action+" failed", slog.String("target", req.TargetID), slog.Any("err", err), slog.String("component", "users"))
		http.Error(w, action+" failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"target_id": req.TargetID, "action": action})
}

// HandleFollowStatus reports whether the viewer follows a channel
// (?target_id=).
func (h *Handlers) HandleFollowStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	targetID := strings.TrimSpace(r.URL.Query().Get("target_id"))
	if targetID == "" {
		http.Error(w, "target_id is required", http.StatusBadRequest)
		return
	}

	userID, err := h.viewerID(r)
	if err != nil || userID == "" {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"target_id": targetID,
		"following": h.twitch.CheckFollow(ctx, userID, targetID),
	})
}
