// Package dadjoke fetches a random joke from icanhazdadjoke.com.
package dadjoke

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is the public joke endpoint.
const DefaultURL = "https://icanhazdadjoke.com/"

// Client returns one joke per Fetch.
type Client struct {
	URL        string
	HTTPClient *http.Client
	// UserAgent is sent as the API asks callers to identify themselves.
	UserAgent string
}

type jokeResponse struct {
	ID     string `json:"id"`
	Joke   string `json:"joke"`
	Status int    `json:"status"`
}

// Fetch GETs a random joke as JSON and returns its text.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	url := c.URL
	if url == "" {
		url = DefaultURL
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	ua := c.UserAgent
	if ua == "" {
		ua = "meme-machine (https://github.com/onnwee/meme-machine)"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("dadjoke request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("dadjoke status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var jr jokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return "", fmt.Errorf("decode dadjoke: %w", err)
	}
	if strings.TrimSpace(jr.Joke) == "" {
		return "", fmt.Errorf("dadjoke: empty joke")
	}
	return jr.Joke, nil
}
