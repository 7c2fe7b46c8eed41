package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

type helixUser struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// SelfInfo returns the logged-in user, reshaped to the GQL viewer form the
// frontend expects.
func (c *Client) SelfInfo(ctx context.Context) (json.RawMessage, error) {
	var body struct {
		Data []helixUser `json:"data"`
	}
	if err := c.helixGet(ctx, "/users", &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("no user data returned")
	}
	u := body.Data[0]
	return json.Marshal(map[string]any{
		"viewer": map[string]any{
			"id":              u.ID,
			"login":           u.Login,
			"displayName":     u.DisplayName,
			"profileImageURL": u.ProfileImageURL,
		},
	})
}

type helixStream struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	UserLogin    string `json:"user_login"`
	UserName     string `json:"user_name"`
	GameID       string `json:"game_id"`
	GameName     string `json:"game_name"`
	ViewerCount  int    `json:"viewer_count"`
	StartedAt    string `json:"started_at"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// FollowedStreams returns the user's live followed channels, reshaped to the
// GQL followedLiveUsers edge list. Profile images come from a second Helix
// call; that call failing only degrades the images.
func (c *Client) FollowedStreams(ctx context.Context, userID string) (json.RawMessage, error) {
	var body struct {
		Data []helixStream `json:"data"`
	}
	if err := c.helixGet(ctx, "/streams/followed?user_id="+url.QueryEscape(userID)+"&first=100", &body); err != nil {
		return nil, err
	}

	avatars := c.profileImages(ctx, body.Data)

	edges := make([]map[string]any, 0, len(body.Data))
	for _, s := range body.Data {
		image := avatars[s.UserID]
		if image == "" {
			image = strings.NewReplacer("{width}", "70", "{height}", "70").Replace(s.ThumbnailURL)
		}
		edges = append(edges, map[string]any{
			"node": map[string]any{
				"id":              s.UserID,
				"login":           s.UserLogin,
				"displayName":     s.UserName,
				"profileImageURL": image,
				"stream": map[string]any{
					"id":            s.ID,
					"viewersCount":  s.ViewerCount,
					"createdAt":     s.StartedAt,
					"game": map[string]any{
						"id":          s.GameID,
						"displayName": s.GameName,
						"name":        s.GameName,
					},
				},
			},
		})
	}
	return json.Marshal(map[string]any{
		"user": map[string]any{
			"followedLiveUsers": map[string]any{
				"edges": edges,
			},
		},
	})
}

func (c *Client) profileImages(ctx context.Context, streams []helixStream) map[string]string {
	if len(streams) == 0 {
		return nil
	}
	q := make([]string, 0, len(streams))
	for _, s := range streams {
		q = append(q, "id="+url.QueryEscape(s.UserID))
	}
	var body struct {
		Data []helixUser `json:"data"`
	}
	if err := c.helixGet(ctx, "/users?"+strings.Join(q, "&"), &body); err != nil {
		slog.Warn("profile image lookup failed", slog.Any("err", err), slog.String("component", "twitchapi"))
		return nil
	}
	out := make(map[string]string, len(body.Data))
	for _, u := range body.Data {
		out[u.ID] = u.ProfileImageURL
	}
	return out
}

// GlobalEmotes returns Twitch's global emote set (LUL, Kappa, ...).
func (c *Client) GlobalEmotes(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.helixGet(ctx, "/chat/emotes/global", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ChannelEmotes returns a channel's subscriber emotes.
func (c *Client) ChannelEmotes(ctx context.Context, channelID string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.helixGet(ctx, "/chat/emotes?broadcaster_id="+url.QueryEscape(channelID), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// CheckFollow reports whether fromUserID follows toUserID. API failures read
// as "not following" rather than an error.
func (c *Client) CheckFollow(ctx context.Context, fromUserID, toUserID string) bool {
	var body struct {
		Data []json.RawMessage `json:"data"`
	}
	path := "/channels/followed?user_id=" + url.QueryEscape(fromUserID) + "&broadcaster_id=" + url.QueryEscape(toUserID)
	if err := c.helixGet(ctx, path, &body); err != nil {
		return false
	}
	return len(body.Data) > 0
}
