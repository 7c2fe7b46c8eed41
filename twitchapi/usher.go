package twitchapi

import (
	"fmt"
	"math/rand"
	"net/url"
)

// UsherURL builds the HLS master playlist URL for a live channel. The p
// parameter is a random cache-buster the web player also sends.
func UsherURL(login string, token *AccessToken) string {
	p := rand.Intn(9999999)
	return fmt.Sprintf(
		"https://usher.ttvnw.net/api/v2/channel/hls/%s.m3u8?allow_source=true&allow_audio_only=true&fast_bread=true&p=%d&sig=%s&token=%s",
		login, p, token.Signature, url.QueryEscape(token.Value),
	)
}
