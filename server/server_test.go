package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/secousse/backend/chat"
	"github.com/secousse/backend/config"
	"github.com/secousse/backend/emotes"
	"github.com/secousse/backend/testutil"
	"github.com/secousse/backend/twitchapi"
)

// newTestHandlers builds Handlers against a mock Twitch server, with no
// database and an idle chat manager. Tests needing the DB use
// testutil.SetupTestDB and set Deps.DB themselves.
func newTestHandlers(t *testing.T, mock *testutil.MockTwitchServer) *Handlers {
	t.Helper()
	cfg := &config.Config{
		ChatPingInterval: 30 * time.Second,
		ChatMailboxSize:  100,
	}
	client := &twitchapi.Client{
		TokenSource: twitchapi.StaticToken(""),
		DeviceID:    "testdevice",
		GQLURL:      mock.URL + "/gql",
		HelixURL:    mock.URL + "/helix",
		WebURL:      mock.URL,
	}
	return NewHandlers(Deps{
		Cfg:    cfg,
		Twitch: client,
		Emotes: &emotes.Fetcher{},
		Chat:   chat.NewManager(func(chat.Event) {}),
		Hub:    NewHub(),
	})
}

func TestTopStreams(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.JSON("/gql", map[string]any{
		"data": map[string]any{
			"streams": map[string]any{
				"edges": []map[string]any{
					{"node": map[string]any{"broadcaster": map[string]any{"login": "sodapoppin"}, "viewersCount": 12345}},
				},
			},
		},
	})

	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/streams/top?limit=10")
	if err != nil {
		t.Fatalf("GET /streams/top: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Streams struct {
			Edges []json.RawMessage `json:"edges"`
		} `json:"streams"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Streams.Edges) != 1 {
		t.Errorf("edges = %d, want 1", len(body.Streams.Edges))
	}
}

func TestChannelLookup(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.JSON("/gql", map[string]any{
		"data": map[string]any{
			"user": map[string]any{"id": "1", "login": "sodapoppin", "displayName": "Sodapoppin"},
		},
	})

	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/channels/Sodapoppin")
	if err != nil {
		t.Fatalf("GET /channels/Sodapoppin: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestChannelNotFound(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.JSON("/gql", map[string]any{
		"data": map[string]any{"user": nil},
	})

	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/channels/nosuchuser")
	if err != nil {
		t.Fatalf("GET /channels/nosuchuser: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestChannelsRequiresLogins(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/channels")
	if err != nil {
		t.Fatalf("GET /channels: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.JSON("/gql", map[string]any{
		"data": map[string]any{
			"searchUsers": map[string]any{
				"edges": []map[string]any{
					{"node": map[string]any{"id": "1", "login": "forsen"}},
				},
			},
		},
	})

	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/search?q=forsen")
	if err != nil {
		t.Fatalf("GET /search: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/search")
	if err != nil {
		t.Fatalf("GET /search (no query): %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("status without q = %d, want 400", resp2.StatusCode)
	}
}

func TestPlaybackURL(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.JSON("/gql", map[string]any{
		"data": map[string]any{
			"streamPlaybackAccessToken": map[string]any{
				"signature": "sig123",
				"value":     `{"channel":"sodapoppin"}`,
			},
		},
	})

	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/playback/sodapoppin")
	if err != nil {
		t.Fatalf("GET /playback/sodapoppin: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.Contains(body.URL, "usher.ttvnw.net/api/v2/channel/hls/sodapoppin.m3u8") {
		t.Errorf("url = %q, want usher playlist for sodapoppin", body.URL)
	}
	if !strings.Contains(body.URL, "sig=sig123") {
		t.Errorf("url = %q, want signature in query", body.URL)
	}
}

func TestPlaybackOffline(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.JSON("/gql", map[string]any{
		"data": map[string]any{"streamPlaybackAccessToken": nil},
	})

	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/playback/offlinechannel")
	if err != nil {
		t.Fatalf("GET /playback/offlinechannel: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWatchLifecycle(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	h := newTestHandlers(t, mock)
	srv := httptest.NewServer(NewMux(h))
	defer srv.Close()

	body := strings.NewReader(`{"channel_login":"Sodapoppin","channel_id":"26301881","stream_id":"42","user_id":"99"}`)
	resp, err := http.Post(srv.URL+"/watch", "application/json", body)
	if err != nil {
		t.Fatalf("POST /watch: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	ws := h.currentWatch()
	if ws == nil {
		t.Fatal("watch state not set")
	}
	if ws.ChannelLogin != "sodapoppin" {
		t.Errorf("channel login = %q, want lowercased sodapoppin", ws.ChannelLogin)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/watch", nil)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /watch: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp2.StatusCode)
	}
	if h.currentWatch() != nil {
		t.Error("watch state not cleared")
	}
}

func TestWatchRejectsIncomplete(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/watch", "application/json", strings.NewReader(`{"channel_login":"x"}`))
	if err != nil {
		t.Fatalf("POST /watch: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatusSnapshot(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		ChatChannel    string `json:"chat_channel"`
		Authenticated  bool   `json:"authenticated"`
		SSESubscribers int    `json:"sse_subscribers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ChatChannel != "" {
		t.Errorf("chat_channel = %q, want empty when disconnected", body.ChatChannel)
	}
	if body.Authenticated {
		t.Error("authenticated = true, want false without a token")
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Correlation-ID") == "" {
		t.Error("missing X-Correlation-ID response header")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/status", nil)
	req.Header.Set("X-Correlation-ID", "corr-abc")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /status with corr: %v", err)
	}
	defer resp2.Body.Close()
	if got := resp2.Header.Get("X-Correlation-ID"); got != "corr-abc" {
		t.Errorf("X-Correlation-ID = %q, want corr-abc echoed back", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	srv := httptest.NewServer(NewMux(newTestHandlers(t, mock)))
	defer srv.Close()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/chat/connect"},
		{http.MethodGet, "/chat/send"},
		{http.MethodPost, "/streams/top"},
		{http.MethodPost, "/search"},
		{http.MethodGet, "/auth/twitch/logout"},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, srv.URL+tc.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want 405", tc.method, tc.path, resp.StatusCode)
		}
	}
}
