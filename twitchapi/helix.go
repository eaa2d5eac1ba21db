// Package twitchapi contains minimal helpers to interact with Twitch Helix APIs
// for live stream status and user display names, using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the Helix API root.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// HelixClient provides the Helix calls the bot needs.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
}

// Stream is one entry of the Helix streams endpoint. Only live streams are returned.
type Stream struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserLogin   string    `json:"user_login"`
	UserName    string    `json:"user_name"`
	GameName    string    `json:"game_name"`
	Title       string    `json:"title"`
	ViewerCount int       `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at"`
}

// User is one entry of the Helix users endpoint.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) get(ctx context.Context, path string, q url.Values, out any) error {
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	base := hc.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("helix %s failed: %s: %s", path, resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetStreams returns the live streams for a login; an empty slice means offline.
func (hc *HelixClient) GetStreams(ctx context.Context, login string) ([]Stream, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	q := url.Values{}
	q.Set("user_login", login)
	var body struct {
		Data []Stream `json:"data"`
	}
	if err := hc.get(ctx, "/streams", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// IsLive reports whether login is currently broadcasting.
func (hc *HelixClient) IsLive(ctx context.Context, login string) (bool, error) {
	streams, err := hc.GetStreams(ctx, login)
	if err != nil {
		return false, err
	}
	return len(streams) > 0, nil
}

// GetUsers resolves up to 100 user ids.
func (hc *HelixClient) GetUsers(ctx context.Context, ids ...string) ([]User, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("ids empty")
	}
	if len(ids) > 100 {
		return nil, fmt.Errorf("too many ids: %d > 100", len(ids))
	}
	q := url.Values{}
	for _, id := range ids {
		q.Add("id", id)
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := hc.get(ctx, "/users", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// DisplayName resolves a Twitch user id to its display name.
func (hc *HelixClient) DisplayName(ctx context.Context, userID string) (string, error) {
	users, err := hc.GetUsers(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "", fmt.Errorf("user not found")
	}
	if users[0].DisplayName != "" {
		return users[0].DisplayName, nil
	}
	return users[0].Login, nil
}
