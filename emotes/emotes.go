// Package emotes fetches third-party emotes (7TV, BTTV, FFZ) for chat
// rendering. Provider failures degrade to an empty list; a chat without
// emotes beats a chat that won't load.
package emotes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/secousse/backend/telemetry"
)

// Emote is a single renderable emote: the code users type and its image URL.
type Emote struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Fetcher aggregates the third-party emote providers. Base URLs are
// overridable in tests; zero values hit the real services.
type Fetcher struct {
	HTTPClient *http.Client

	SevenTVURL string
	BTTVURL    string
	FFZURL     string
}

func (f *Fetcher) http() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

func (f *Fetcher) sevenTV() string {
	if f.SevenTVURL != "" {
		return f.SevenTVURL
	}
	return "https://7tv.io/v3"
}

func (f *Fetcher) bttv() string {
	if f.BTTVURL != "" {
		return f.BTTVURL
	}
	return "https://api.betterttv.net/3"
}

func (f *Fetcher) ffz() string {
	if f.FFZURL != "" {
		return f.FFZURL
	}
	return "https://api.frankerfacez.com/v1"
}

// ChannelEmotes fetches a channel's 7TV, BTTV and FFZ emotes concurrently
// and merges them in provider order.
func (f *Fetcher) ChannelEmotes(ctx context.Context, channelID string) []Emote {
	var stv, bttv, ffz []Emote
	took := telemetry.TimeFunc(telemetry.EmoteFetchDuration, func() {
		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); stv = f.sevenTVChannel(ctx, channelID) }()
		go func() { defer wg.Done(); bttv = f.bttvChannel(ctx, channelID) }()
		go func() { defer wg.Done(); ffz = f.ffzChannel(ctx, channelID) }()
		wg.Wait()
	})
	slog.Debug("channel emotes fetched",
		slog.String("channel_id", channelID),
		slog.Int("seventv", len(stv)), slog.Int("bttv", len(bttv)), slog.Int("ffz", len(ffz)),
		slog.Duration("took", took))

	out := make([]Emote, 0, len(stv)+len(bttv)+len(ffz))
	out = append(out, stv...)
	out = append(out, bttv...)
	out = append(out, ffz...)
	return out
}

// GlobalEmotes fetches the 7TV and BTTV global sets concurrently.
func (f *Fetcher) GlobalEmotes(ctx context.Context) []Emote {
	var stv, bttv []Emote
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); stv = f.sevenTVGlobal(ctx) }()
	go func() { defer wg.Done(); bttv = f.bttvGlobal(ctx) }()
	wg.Wait()

	out := make([]Emote, 0, len(stv)+len(bttv))
	out = append(out, stv...)
	out = append(out, bttv...)
	return out
}

type sevenTVEmote struct {
	Name string `json:"name"`
	Data struct {
		Host struct {
			URL string `json:"url"`
		} `json:"host"`
	} `json:"data"`
}

func collectSevenTV(list []sevenTVEmote) []Emote {
	out := make([]Emote, 0, len(list))
	for _, e := range list {
		if e.Name == "" || e.Data.Host.URL == "" {
			continue
		}
		out = append(out, Emote{Name: e.Name, URL: "https:" + e.Data.Host.URL + "/2x.webp"})
	}
	return out
}

func (f *Fetcher) sevenTVChannel(ctx context.Context, channelID string) []Emote {
	var body struct {
		EmoteSet struct {
			Emotes []sevenTVEmote `json:"emotes"`
		} `json:"emote_set"`
	}
	if err := f.getJSON(ctx, f.sevenTV()+"/users/twitch/"+channelID, &body); err != nil {
		slog.Debug("7tv channel emotes unavailable", slog.String("channel_id", channelID), slog.Any("err", err))
		return nil
	}
	return collectSevenTV(body.EmoteSet.Emotes)
}

func (f *Fetcher) sevenTVGlobal(ctx context.Context) []Emote {
	var body struct {
		Emotes []sevenTVEmote `json:"emotes"`
	}
	if err := f.getJSON(ctx, f.sevenTV()+"/emote-sets/global", &body); err != nil {
		slog.Debug("7tv global emotes unavailable", slog.Any("err", err))
		return nil
	}
	return collectSevenTV(body.Emotes)
}

type bttvEmote struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

func collectBTTV(lists ...[]bttvEmote) []Emote {
	var out []Emote
	for _, list := range lists {
		for _, e := range list {
			if e.ID == "" || e.Code == "" {
				continue
			}
			out = append(out, Emote{Name: e.Code, URL: "https://cdn.betterttv.net/emote/" + e.ID + "/2x.webp"})
		}
	}
	return out
}

func (f *Fetcher) bttvChannel(ctx context.Context, channelID string) []Emote {
	var body struct {
		ChannelEmotes []bttvEmote `json:"channelEmotes"`
		SharedEmotes  []bttvEmote `json:"sharedEmotes"`
	}
	if err := f.getJSON(ctx, f.bttv()+"/cached/users/twitch/"+channelID, &body); err != nil {
		slog.Debug("bttv channel emotes unavailable", slog.String("channel_id", channelID), slog.Any("err", err))
		return nil
	}
	return collectBTTV(body.ChannelEmotes, body.SharedEmotes)
}

func (f *Fetcher) bttvGlobal(ctx context.Context) []Emote {
	var body []bttvEmote
	if err := f.getJSON(ctx, f.bttv()+"/cached/emotes/global", &body); err != nil {
		slog.Debug("bttv global emotes unavailable", slog.Any("err", err))
		return nil
	}
	return collectBTTV(body)
}

func (f *Fetcher) ffzChannel(ctx context.Context, channelID string) []Emote {
	var body struct {
		Sets map[string]struct {
			Emoticons []struct {
				Name string            `json:"name"`
				URLs map[string]string `json:"urls"`
			} `json:"emoticons"`
		} `json:"sets"`
	}
	if err := f.getJSON(ctx, f.ffz()+"/room/id/"+channelID, &body); err != nil {
		slog.Debug("ffz channel emotes unavailable", slog.String("channel_id", channelID), slog.Any("err", err))
		return nil
	}
	var out []Emote
	for _, set := range body.Sets {
		for _, e := range set.Emoticons {
			if e.Name == "" {
				continue
			}
			u := e.URLs["2"]
			if u == "" {
				u = e.URLs["1"]
			}
			if u == "" {
				continue
			}
			if !strings.HasPrefix(u, "http") {
				u = "https:" + u
			}
			out = append(out, Emote{Name: e.Name, URL: u})
		}
	}
	return out
}

func (f *Fetcher) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("emote fetch %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
