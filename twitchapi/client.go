// Package twitchapi contains clients for the Twitch APIs the player talks to:
// the internal GQL endpoint (playback tokens, user and stream metadata), the
// public Helix API, the usher HLS edge, and the spade analytics beacon.
package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/secousse/backend/telemetry"
)

const (
	// GQLClientID is Twitch's internal web client id. GQL rejects queries
	// from custom client ids, so all GQL traffic uses this one.
	GQLClientID = "kd1unb4b3q4t58fwlpcbzcbnm76a8fp"
	// ClientID is the application's own client id, used for OAuth and Helix.
	ClientID = "jm293pd1wulfgmdfb8lsw2nkjp2717"

	DefaultGQLURL   = "https://gql.twitch.tv/gql/"
	DefaultHelixURL = "https://api.twitch.tv/helix"

	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// UserTokenSource yields the current user access token, or "" when the user
// is not logged in.
type UserTokenSource interface {
	Get(ctx context.Context) (string, error)
}

// StaticToken is a UserTokenSource for a fixed token (tests, one-off calls).
type StaticToken string

func (s StaticToken) Get(context.Context) (string, error) { return string(s), nil }

// Client talks to Twitch on behalf of one device. DeviceID persists across
// restarts (kv table) so Twitch sees a stable player.
type Client struct {
	TokenSource UserTokenSource
	HTTPClient  *http.Client
	DeviceID    string

	// Overridable in tests.
	GQLURL   string
	HelixURL string
	WebURL   string
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) gqlURL() string {
	if c.GQLURL != "" {
		return c.GQLURL
	}
	return DefaultGQLURL
}

func (c *Client) helixURL() string {
	if c.HelixURL != "" {
		return c.HelixURL
	}
	return DefaultHelixURL
}

func (c *Client) userToken(ctx context.Context) string {
	if c.TokenSource == nil {
		return ""
	}
	tok, err := c.TokenSource.Get(ctx)
	if err != nil {
		slog.Warn("user token lookup failed", slog.Any("err", err), slog.String("component", "twitchapi"))
		return ""
	}
	return tok
}

// IsAuthenticated reports whether a user token is currently available.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	return c.userToken(ctx) != ""
}

// GQLResponse is the envelope all GQL replies share. Data stays raw so each
// call can decode into its own shape.
type GQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GQLError      `json:"errors"`
}

type GQLError struct {
	Message string `json:"message"`
}

// gql posts a GQL payload and returns the decoded envelope. When authed is
// true and a user token exists, it is attached as an OAuth header (required
// for mutations).
func (c *Client) gql(ctx context.Context, payload any, authed bool) (*GQLResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gqlURL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Client-Id", GQLClientID)
	req.Header.Set("X-Device-Id", c.DeviceID)
	req.Header.Set("Origin", "https://www.twitch.tv")
	req.Header.Set("Referer", "https://www.twitch.tv/")
	req.Header.Set("User-Agent", chromeUA)
	if authed {
		if tok := c.userToken(ctx); tok != "" {
			req.Header.Set("Authorization", "OAuth "+tok)
		}
	}

	telemetry.IncGQLRequests()
	resp, err := c.http().Do(req)
	if err != nil {
		telemetry.IncGQLErrors()
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		telemetry.IncGQLErrors()
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gql request failed: %s: %s", resp.Status, string(b))
	}
	var out GQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		telemetry.IncGQLErrors()
		return nil, err
	}
	return &out, nil
}

func gqlErrors(errs []GQLError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("gql error: %s", strings.Join(msgs, "; "))
}

// helixGet performs an authenticated Helix GET and decodes the JSON body.
func (c *Client) helixGet(ctx context.Context, pathAndQuery string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.helixURL()+pathAndQuery, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", ClientID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", chromeUA)
	if tok := c.userToken(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	telemetry.IncHelixRequests()
	resp, err := c.http().Do(req)
	if err != nil {
		telemetry.IncHelixErrors()
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.IncHelixErrors()
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("helix request failed: %s: %s", resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
