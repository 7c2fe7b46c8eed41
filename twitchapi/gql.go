package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound marks lookups where the channel or stream does not exist, or
// the channel is offline for playback-token requests.
var ErrNotFound = errors.New("not found")

// AccessToken is a stream playback access token from GQL; signature and
// value go straight into the usher URL.
type AccessToken struct {
	Signature string `json:"signature"`
	Value     string `json:"value"`
}

// playbackAccessTokenHash is the persisted query hash the web player sends
// for the PlaybackAccessToken operation.
const playbackAccessTokenHash = "ed230aa1e33e07eebb8928504583da78a5173989fadfb1ac94be06a04f3cdbe9"

// PlaybackAccessToken fetches a live playback token for a channel login.
func (c *Client) PlaybackAccessToken(ctx context.Context, login string) (*AccessToken, error) {
	payload := map[string]any{
		"operationName": "PlaybackAccessToken",
		"variables": map[string]any{
			"isLive":     true,
			"login":      login,
			"isVod":      false,
			"vodID":      "",
			"platform":   "web",
			"playerType": "site",
		},
		"extensions": map[string]any{
			"persistedQuery": map[string]any{
				"version":    1,
				"sha256Hash": playbackAccessTokenHash,
			},
		},
	}
	res, err := c.gql(ctx, payload, false)
	if err != nil {
		return nil, err
	}
	var data struct {
		StreamPlaybackAccessToken *AccessToken `json:"streamPlaybackAccessToken"`
	}
	if len(res.Data) > 0 {
		if err := json.Unmarshal(res.Data, &data); err != nil {
			return nil, err
		}
	}
	if data.StreamPlaybackAccessToken == nil {
		if len(res.Errors) > 0 {
			return nil, gqlErrors(res.Errors)
		}
		return nil, fmt.Errorf("playback token for %q: %w", login, ErrNotFound)
	}
	return data.StreamPlaybackAccessToken, nil
}

const userInfoQuery = `
	query GetUser($login: String!) {
		user(login: $login) {
			id
			login
			displayName
			profileImageURL(width: 300)
			stream {
				id
				title
				viewersCount
				createdAt
				game {
					id
					displayName
				}
			}
		}
	}
`

// UserInfo returns channel metadata for a login, GQL-shaped for the frontend.
func (c *Client) UserInfo(ctx context.Context, login string) (json.RawMessage, error) {
	res, err := c.gql(ctx, map[string]any{
		"query":     userInfoQuery,
		"variables": map[string]any{"login": login},
	}, false)
	if err != nil {
		return nil, err
	}
	var probe struct {
		User json.RawMessage `json:"user"`
	}
	if len(res.Data) > 0 {
		if err := json.Unmarshal(res.Data, &probe); err != nil {
			return nil, err
		}
	}
	if len(probe.User) == 0 || string(probe.User) == "null" {
		if len(res.Errors) > 0 {
			return nil, gqlErrors(res.Errors)
		}
		return nil, fmt.Errorf("user %q: %w", login, ErrNotFound)
	}
	return res.Data, nil
}

const usersInfoQuery = `
	query GetUsers($logins: [String!]) {
		users(logins: $logins) {
			id
			login
			displayName
			profileImageURL(width: 70)
			stream {
				viewersCount
				game {
					name
				}
			}
		}
	}
`

// UsersInfo resolves several logins in one query.
func (c *Client) UsersInfo(ctx context.Context, logins []string) (json.RawMessage, error) {
	res, err := c.gql(ctx, map[string]any{
		"query":     usersInfoQuery,
		"variables": map[string]any{"logins": logins},
	}, false)
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return nil, gqlErrors(res.Errors)
	}
	return res.Data, nil
}

const topStreamsQuery = `
	query GetTopStreams($first: Int) {
		streams(first: $first) {
			edges {
				node {
					id
					broadcaster {
						id
						login
						displayName
						profileImageURL(width: 70)
					}
					viewersCount
					title
					game {
						id
						displayName
						name
					}
					previewImageURL(width: 440, height: 248)
				}
			}
		}
	}
`

// TopStreams lists the most-viewed live streams.
func (c *Client) TopStreams(ctx context.Context, limit int) (json.RawMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	res, err := c.gql(ctx, map[string]any{
		"query":     topStreamsQuery,
		"variables": map[string]any{"first": limit},
	}, false)
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return nil, gqlErrors(res.Errors)
	}
	return res.Data, nil
}

const searchChannelsQuery = `
	query SearchChannels($query: String!, $first: Int) {
		searchUsers(userQuery: $query, first: $first) {
			edges {
				node {
					id
					login
					displayName
					profileImageURL(width: 70)
					stream {
						id
						viewersCount
						game {
							displayName
						}
					}
				}
			}
		}
	}
`

// SearchChannels finds channels matching a query string.
func (c *Client) SearchChannels(ctx context.Context, query string) (json.RawMessage, error) {
	res, err := c.gql(ctx, map[string]any{
		"query":     searchChannelsQuery,
		"variables": map[string]any{"query": query, "first": 20},
	}, false)
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return nil, gqlErrors(res.Errors)
	}
	return res.Data, nil
}

const globalBadgesQuery = `
	query Badges {
		badges {
			imageURL(size: DOUBLE)
			setID
			title
			version
		}
	}
`

// GlobalBadges returns the global badge set.
func (c *Client) GlobalBadges(ctx context.Context) (json.RawMessage, error) {
	res, err := c.gql(ctx, map[string]any{
		"query":     globalBadgesQuery,
		"variables": map[string]any{},
	}, false)
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return nil, gqlErrors(res.Errors)
	}
	return res.Data, nil
}

const channelBadgesQuery = `
	query UserBadges($id: ID) {
		user(id: $id, lookupType: ALL) {
			broadcastBadges {
				imageURL(size: DOUBLE)
				setID
				title
				version
			}
		}
	}
`

// ChannelBadges returns the broadcaster badge set for a channel id.
func (c *Client) ChannelBadges(ctx context.Context, channelID string) (json.RawMessage, error) {
	res, err := c.gql(ctx, map[string]any{
		"query":     channelBadgesQuery,
		"variables": map[string]any{"id": channelID},
	}, false)
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return nil, gqlErrors(res.Errors)
	}
	return res.Data, nil
}

const followUserMutation = `
	mutation FollowButton_FollowUser($input: FollowUserInput!) {
		followUser(input: $input) {
			follow {
				disableNotifications
				user {
					id
					displayName
				}
			}
		}
	}
`

// FollowUser follows a channel. Helix dropped its follow endpoints in 2023,
// so this goes through the authenticated GQL mutation.
func (c *Client) FollowUser(ctx context.Context, targetID string) error {
	res, err := c.gql(ctx, map[string]any{
		"query": followUserMutation,
		"variables": map[string]any{
			"input": map[string]any{
				"targetID":             targetID,
				"disableNotifications": false,
			},
		},
	}, true)
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return gqlErrors(res.Errors)
	}
	return nil
}

const unfollowUserMutation = `
	mutation FollowButton_UnfollowUser($input: UnfollowUserInput!) {
		unfollowUser(input: $input) {
			follow {
				user {
					id
					displayName
				}
			}
		}
	}
`

// UnfollowUser unfollows a channel via the authenticated GQL mutation.
func (c *Client) UnfollowUser(ctx context.Context, targetID string) error {
	res, err := c.gql(ctx, map[string]any{
		"query": unfollowUserMutation,
		"variables": map[string]any{
			"input": map[string]any{"targetID": targetID},
		},
	}, true)
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return gqlErrors(res.Errors)
	}
	return nil
}
