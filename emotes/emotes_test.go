package emotes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newProviderServer(t *testing.T, routes map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)
	return server
}

func emoteMap(list []Emote) map[string]string {
	m := make(map[string]string, len(list))
	for _, e := range list {
		m[e.Name] = e.URL
	}
	return m
}

func TestChannelEmotesAggregatesProviders(t *testing.T) {
	server := newProviderServer(t, map[string]any{
		"/users/twitch/42": map[string]any{
			"emote_set": map[string]any{
				"emotes": []map[string]any{
					{"name": "stvWow", "data": map[string]any{"host": map[string]any{"url": "//cdn.7tv.app/emote/abc"}}},
					{"name": "", "data": map[string]any{"host": map[string]any{"url": "//cdn.7tv.app/emote/skip"}}},
				},
			},
		},
		"/cached/users/twitch/42": map[string]any{
			"channelEmotes": []map[string]string{{"id": "b1", "code": "bttvHi"}},
			"sharedEmotes":  []map[string]string{{"id": "b2", "code": "bttvShared"}, {"id": "", "code": "dropped"}},
		},
		"/room/id/42": map[string]any{
			"sets": map[string]any{
				"100": map[string]any{
					"emoticons": []map[string]any{
						{"name": "ffzCat", "urls": map[string]string{"1": "//cdn.ffz/1", "2": "//cdn.ffz/2"}},
						{"name": "ffzOnlyOne", "urls": map[string]string{"1": "https://cdn.ffz/abs"}},
						{"name": "ffzNoURL", "urls": map[string]string{}},
					},
				},
			},
		},
	})

	f := &Fetcher{SevenTVURL: server.URL, BTTVURL: server.URL, FFZURL: server.URL}
	got := emoteMap(f.ChannelEmotes(context.Background(), "42"))

	want := map[string]string{
		"stvWow":     "https://cdn.7tv.app/emote/abc/2x.webp",
		"bttvHi":     "https://cdn.betterttv.net/emote/b1/2x.webp",
		"bttvShared": "https://cdn.betterttv.net/emote/b2/2x.webp",
		"ffzCat":     "https://cdn.ffz/2",
		"ffzOnlyOne": "https://cdn.ffz/abs",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d emotes %v, want %d", len(got), got, len(want))
	}
	for name, url := range want {
		if got[name] != url {
			t.Errorf("emote %s = %q, want %q", name, got[name], url)
		}
	}
}

func TestChannelEmotesSurvivesProviderFailure(t *testing.T) {
	// Only BTTV responds; 7TV and FFZ 404. The result is just the BTTV set.
	server := newProviderServer(t, map[string]any{
		"/cached/users/twitch/42": map[string]any{
			"channelEmotes": []map[string]string{{"id": "b1", "code": "bttvHi"}},
		},
	})

	f := &Fetcher{SevenTVURL: server.URL, BTTVURL: server.URL, FFZURL: server.URL}
	got := f.ChannelEmotes(context.Background(), "42")
	if len(got) != 1 || got[0].Name != "bttvHi" {
		t.Errorf("got %v, want only the bttv emote", got)
	}
}

func TestGlobalEmotes(t *testing.T) {
	server := newProviderServer(t, map[string]any{
		"/emote-sets/global": map[string]any{
			"emotes": []map[string]any{
				{"name": "stvGlobal", "data": map[string]any{"host": map[string]any{"url": "//cdn.7tv.app/emote/g"}}},
			},
		},
		"/cached/emotes/global": []map[string]string{
			{"id": "g1", "code": "bttvGlobal"},
		},
	})

	f := &Fetcher{SevenTVURL: server.URL, BTTVURL: server.URL, FFZURL: server.URL}
	got := emoteMap(f.GlobalEmotes(context.Background()))
	if got["stvGlobal"] != "https://cdn.7tv.app/emote/g/2x.webp" {
		t.Errorf("stvGlobal = %q", got["stvGlobal"])
	}
	if got["bttvGlobal"] != "https://cdn.betterttv.net/emote/g1/2x.webp" {
		t.Errorf("bttvGlobal = %q", got["bttvGlobal"])
	}
}
