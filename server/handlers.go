// Package server exposes the HTTP API the player frontend talks to: chat
// gateway control and SSE event stream, stream/channel metadata, emotes and
// badges, OAuth login, health and metrics. It includes permissive CORS for
// development and injects correlation IDs into request contexts for
// consistent logging.
package server

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/secousse/backend/chat"
	"github.com/secousse/backend/config"
	"github.com/secousse/backend/emotes"
	"github.com/secousse/backend/twitchapi"
)

const (
	// Maximum number of OAuth states to keep in memory.
	maxOAuthStates = 10000

	spadeInterval = 60 * time.Second
)

// Deps are the external dependencies the handlers need.
type Deps struct {
	DB        *sql.DB
	Cfg       *config.Config
	Twitch    *twitchapi.Client
	Emotes    *emotes.Fetcher
	Chat      *chat.Manager
	Hub       *Hub
	OAuthConf *oauth2.Config
	Tokens    *twitchapi.StoreTokenSource
}

// watchState identifies the stream currently being watched; the spade loop
// reports minute-watched beacons for it.
type watchState struct {
	ChannelLogin string `json:"channel_login"`
	ChannelID    string `json:"channel_id"`
	StreamID     string `json:"stream_id"`
	UserID       string `json:"user_id"`
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	twitch *twitchapi.Client
	emotes *emotes.Fetcher
	chat   *chat.Manager
	hub    *Hub
	oauth  *oauth2.Config
	tokens *twitchapi.StoreTokenSource

	stateMu    sync.RWMutex
	stateStore map[string]time.Time

	watchMu sync.Mutex
	watch   *watchState
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		db:         deps.DB,
		cfg:        deps.Cfg,
		twitch:     deps.Twitch,
		emotes:     deps.Emotes,
		chat:       deps.Chat,
		hub:        deps.Hub,
		oauth:      deps.OAuthConf,
		tokens:     deps.Tokens,
		stateStore: make(map[string]time.Time),
	}
}

// cleanExpiredStates removes expired OAuth states from the store.
// This should be called with stateMu locked.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState adds a new OAuth state to the store with cleanup if needed.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}

	// Over the cap, refuse new states; a failed OAuth flow beats memory
	// exhaustion.
	if len(h.stateStore) >= maxOAuthStates {
		return
	}

	h.stateStore[state] = expiry
}

// consumeOAuthState validates and removes a state, returning whether it was
// valid and unexpired.
func (h *Handlers) consumeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	exp, ok := h.stateStore[state]
	if !ok {
		return false
	}
	delete(h.stateStore, state)
	return time.Now().Before(exp)
}

func (h *Handlers) setWatch(ws *watchState) {
	h.watchMu.Lock()
	h.watch = ws
	h.watchMu.Unlock()
}

func (h *Handlers) currentWatch() *watchState {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	return h.watch
}

// StartSpadeLoop reports a minute-watched beacon every 60s while a watch
// state is set, mirroring what the web player does. Runs until ctx ends.
func (h *Handlers) StartSpadeLoop(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(spadeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			ws := h.currentWatch()
			if ws == nil {
				continue
			}
			if err := h.twitch.SendSpadeEvent(ctx, ws.ChannelLogin, ws.ChannelID, ws.StreamID, ws.UserID); err != nil {
				slog.Warn("spade beacon failed", slog.String("channel", ws.ChannelLogin), slog.Any("err", err))
			}
		}
	}()
}
