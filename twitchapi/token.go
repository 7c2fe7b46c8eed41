package twitchapi

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/secousse/backend/db"
)

// TokenProvider is the oauth_tokens row key for the Twitch user token.
const TokenProvider = "twitch"

// StoreTokenSource yields the persisted user token from the oauth_tokens
// table, caching it in memory until close to expiry. The background
// refresher keeps the row fresh, so a re-read after cache expiry picks up
// the rotated token.
type StoreTokenSource struct {
	DB *sql.DB

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// Get returns the current user access token, or "" when the user is not
// logged in.
func (ts *StoreTokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.RLock()
	if ts.token != "" && time.Until(ts.expiresAt) > 60*time.Second { // 1 min buffer
		tok := ts.token
		ts.mu.RUnlock()
		return tok, nil
	}
	ts.mu.RUnlock()
	return ts.reload(ctx)
}

func (ts *StoreTokenSource) reload(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && time.Until(ts.expiresAt) > 60*time.Second {
		return ts.token, nil
	}
	access, _, expiry, _, err := db.GetOAuthToken(ctx, ts.DB, TokenProvider)
	if err != nil {
		return "", err
	}
	ts.token = access
	ts.expiresAt = expiry
	return access, nil
}

// Invalidate drops the cached token so the next Get re-reads the store.
// Called after login, logout and manual refresh.
func (ts *StoreTokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.expiresAt = time.Time{}
	ts.mu.Unlock()
}
