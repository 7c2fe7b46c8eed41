package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/secousse/backend/db"
	"github.com/secousse/backend/telemetry"
	"github.com/secousse/backend/twitchapi"
)

const oauthStateTTL = 10 * time.Minute

// HandleOAuthStart begins the authorization-code flow: generates a state,
// remembers it, and redirects the browser to Twitch's consent page.
func (h *Handlers) HandleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.cfg.ValidateOAuthReady(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(buf)
	h.addOAuthState(state, time.Now().Add(oauthStateTTL))

	authURL, err := twitchapi.BuildAuthorizeURL(h.oauth, state)
	if err != nil {
		http.Error(w, "failed to build authorize url", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleOAuthCallback finishes the flow: validates the state, exchanges the
// code, persists tokens, and caches the viewer's login for the chat gateway.
func (h *Handlers) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	log := telemetry.LoggerWithCorr(ctx)

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		log.Warn("oauth consent denied", slog.String("error", errMsg), slog.String("component", "oauth"))
		http.Error(w, "authorization denied: "+errMsg, http.StatusBadRequest)
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" || !h.consumeOAuthState(state) {
		http.Error(w, "invalid or expired state", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	tok, err := twitchapi.ExchangeAuthCode(ctx, h.oauth, code)
	if err != nil {
		log.Error("oauth code exchange failed", slog.Any("err", err), slog.String("component", "oauth"))
		http.Error(w, "code exchange failed", http.StatusBadGateway)
		return
	}

	expiry := twitchapi.ComputeExpiry(tok.Expiry)
	scope := twitchapi.TokenScope(tok)
	if err := db.UpsertOAuthToken(ctx, h.db, twitchapi.TokenProvider, tok.AccessToken, tok.RefreshToken, expiry, scope); err != nil {
		log.Error("failed to persist oauth token", slog.Any("err", err), slog.String("component", "oauth"))
		http.Error(w, "failed to persist token", http.StatusInternalServerError)
		return
	}
	h.tokens.Invalidate()

	// Cache the viewer identity so chat can use it without an extra round
	// trip on every connect.
	if raw, err := h.twitch.SelfInfo(ctx); err == nil {
		var me struct {
			ID    string `json:"id"`
			Login string `json:"login"`
		}
		if jsonErr := json.Unmarshal(raw, &me); jsonErr == nil && me.Login != "" {
			if kvErr := db.SetKV(ctx, h.db, "user_login", me.Login); kvErr != nil {
				log.Warn("failed to cache user login", slog.Any("err", kvErr), slog.String("component", "oauth"))
			}
			if kvErr := db.SetKV(ctx, h.db, "user_id", me.ID); kvErr != nil {
				log.Warn("failed to cache user id", slog.Any("err", kvErr), slog.String("component", "oauth"))
			}
		}
	} else {
		log.Warn("failed to fetch viewer after login", slog.Any("err", err), slog.String("component", "oauth"))
	}

	log.Info("oauth login complete", slog.String("component", "oauth"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<html><body>Login complete. You can close this window.</body></html>"))
}

// HandleOAuthStatus reports whether a user token is stored and when it expires.
func (h *Handlers) HandleOAuthStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	access, _, expiry, scope, err := db.GetOAuthToken(ctx, h.db, twitchapi.TokenProvider)
	if err != nil {
		http.Error(w, "failed to read token", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"authenticated": access != "",
	}
	if access != "" {
		if !expiry.IsZero() {
			resp["expires_at"] = expiry.UTC().Format(time.RFC3339)
		}
		if scope != "" {
			resp["scope"] = scope
		}
		if login, err := db.GetKV(ctx, h.db, "user_login"); err == nil && login != "" {
			resp["login"] = login
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleOAuthLogout removes the stored token and drops the cached identity.
func (h *Handlers) HandleOAuthLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	if err := db.DeleteOAuthToken(ctx, h.db, twitchapi.TokenProvider); err != nil {
		http.Error(w, "failed to delete token", http.StatusInternalServerError)
		return
	}
	h.tokens.Invalidate()
	_ = db.DeleteKV(ctx, h.db, "user_login")
	_ = db.DeleteKV(ctx, h.db, "user_id")

	writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
}
