package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/secousse/backend/emotes"
	"github.com/secousse/backend/testutil"
)

func TestChannelEmotesEndpoint(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.Handlers["/emotes/users/twitch/26301881"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"emote_set":{"emotes":[{"name":"catJAM","data":{"host":{"url":"//cdn.7tv.app/emote/x"}}}]}}`))
	}
	mock.Handlers["/emotes/cached/users/twitch/26301881"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"channelEmotes":[{"id":"abc","code":"monkaS"}],"sharedEmotes":[]}`))
	}
	mock.Handlers["/emotes/room/id/26301881"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sets":{"1":{"emoticons":[{"name":"ZreknarF","urls":{"2":"//cdn.frankerfacez.com/e/1/2"}}]}}}`))
	}

	h := newTestHandlers(t, mock)
	h.emotes = &emotes.Fetcher{
		SevenTVURL: mock.URL + "/emotes",
		BTTVURL:    mock.URL + "/emotes",
		FFZURL:     mock.URL + "/emotes",
	}
	srv := httptest.NewServer(NewMux(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/emotes/channel/26301881")
	if err != nil {
		t.Fatalf("GET /emotes/channel: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		ThirdParty []emotes.Emote `json:"third_party"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.ThirdParty) != 3 {
		t.Fatalf("third_party emotes = %d, want 3", len(body.ThirdParty))
	}
	names := map[string]bool{}
	for _, e := range body.ThirdParty {
		names[e.Name] = true
	}
	for _, want := range []string{"catJAM", "monkaS", "ZreknarF"} {
		if !names[want] {
			t.Errorf("missing emote %q in %v", want, names)
		}
	}
}

func TestGlobalBadgesEndpoint(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.JSON("/gql", map[string]any{
		"data": map[string]any{
			"badges": []map[string]any{
				{"setID": "moderator", "title": "Moderator", "version": "1", "imageURL": "https://example/mod.png"},
			},
		},
	})

	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/badges/global")
	if err != nil {
		t.Fatalf("GET /badges/global: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Badges []map[string]any `json:"badges"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Badges) != 1 {
		t.Errorf("badges = %d, want 1", len(body.Badges))
	}
}
