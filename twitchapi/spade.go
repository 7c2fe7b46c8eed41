package twitchapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	settingsJSRe = regexp.MustCompile(`https://[\w.]+/config/settings\..+?\.js`)
	spadeURLRe   = regexp.MustCompile(`"(?:beacon_url|spade_url)":"(.*?)"`)
)

func (c *Client) webURL() string {
	if c.WebURL != "" {
		return c.WebURL
	}
	return "https://www.twitch.tv"
}

// SendSpadeEvent posts a minute-watched beacon for a live view. The spade
// endpoint isn't documented anywhere stable, so it is scraped from the
// channel page's settings.js on every call. A missing beacon URL is not an
// error; view counting just doesn't happen.
func (c *Client) SendSpadeEvent(ctx context.Context, channelLogin, channelID, streamID, userID string) error {
	page, err := c.fetchText(ctx, c.webURL()+"/"+url.PathEscape(channelLogin))
	if err != nil {
		return err
	}
	settingsURL := settingsJSRe.FindString(page)
	if settingsURL == "" {
		return nil
	}
	settings, err := c.fetchText(ctx, settingsURL)
	if err != nil {
		return err
	}
	m := spadeURLRe.FindStringSubmatch(settings)
	if m == nil {
		return nil
	}
	spadeURL := m[1]

	uid, _ := strconv.ParseUint(userID, 10, 64)
	body, err := json.Marshal(map[string]any{
		"event": "minute-watched",
		"properties": map[string]any{
			"channel_id":   channelID,
			"broadcast_id": streamID,
			"player":       "site",
			"user_id":      uid,
		},
	})
	if err != nil {
		return err
	}
	payload := "data=" + base64.StdEncoding.EncodeToString(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spadeURL, strings.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", chromeUA)
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
	slog.Info("sent spade minute-watched event", slog.String("channel", channelLogin))
	return nil
}

func (c *Client) fetchText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", chromeUA)
	resp, err := c.http().Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
