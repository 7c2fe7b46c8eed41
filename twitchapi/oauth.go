package twitchapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// NewOAuthConfig builds the oauth2 config for the Twitch authorization-code
// flow. Scopes may be space- or comma-separated.
func NewOAuthConfig(clientID, clientSecret, redirectURI, scopes string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Fields(strings.ReplaceAll(scopes, ",", " ")),
		Endpoint:     endpoints.Twitch,
	}
}

// BuildAuthorizeURL constructs the user authorization URL for the code grant.
func BuildAuthorizeURL(conf *oauth2.Config, state string) (string, error) {
	if conf.ClientID == "" || conf.RedirectURL == "" {
		return "", errors.New("missing clientID or redirectURI")
	}
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// ExchangeAuthCode exchanges an authorization code for access & refresh tokens.
func ExchangeAuthCode(ctx context.Context, conf *oauth2.Config, code string) (*oauth2.Token, error) {
	if conf.ClientID == "" || conf.ClientSecret == "" || code == "" || conf.RedirectURL == "" {
		return nil, errors.New("missing required parameter for auth code exchange")
	}
	return conf.Exchange(ctx, code)
}

// RefreshToken exchanges a refresh token for a new access token.
func RefreshToken(ctx context.Context, conf *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	if conf.ClientID == "" || conf.ClientSecret == "" || refreshToken == "" {
		return nil, errors.New("missing clientID/clientSecret/refreshToken")
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

// TokenScope extracts the granted scopes from a token response. Twitch
// returns scope as a JSON array rather than the usual space-joined string.
func TokenScope(tok *oauth2.Token) string {
	switch v := tok.Extra("scope").(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				parts = append(parts, str)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

// ComputeExpiry normalizes a token expiry, defaulting to +60m when the
// provider omitted one.
func ComputeExpiry(expiry time.Time) time.Time {
	if expiry.IsZero() {
		return time.Now().Add(60 * time.Minute)
	}
	return expiry
}
