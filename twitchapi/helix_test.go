package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HelixClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ts := &TokenSource{ClientID: "test-client-id", ClientSecret: "test-secret"}
	// Pre-seed the token to avoid OAuth calls
	ts.SetToken("test-token", time.Now().Add(1*time.Hour))

	return &HelixClient{
		AppTokenSource: ts,
		ClientID:       "test-client-id",
		HTTPClient: &http.Client{
			Transport: &rewriteTransport{
				Transport: http.DefaultTransport,
				host:      server.URL,
			},
		},
	}
}

func TestHelixClient_GetStreams(t *testing.T) {
	tests := []struct {
		response    interface{}
		name        string
		login       string
		errContains string
		statusCode  int
		wantStreams int
		wantErr     bool
	}{
		{
			name:  "live",
			login: "glitch_it",
			response: map[string]interface{}{
				"data": []map[string]interface{}{{
					"id":           "40952121085",
					"user_login":   "glitch_it",
					"title":        "Live Now",
					"viewer_count": 12,
					"started_at":   "2024-10-15T14:30:00Z",
				}},
			},
			statusCode:  http.StatusOK,
			wantStreams: 1,
		},
		{
			name:        "offline",
			login:       "glitch_it",
			response:    map[string]interface{}{"data": []map[string]string{}},
			statusCode:  http.StatusOK,
			wantStreams: 0,
		},
		{
			name:        "unauthorized",
			login:       "glitch_it",
			response:    map[string]string{"error": "Unauthorized"},
			statusCode:  http.StatusUnauthorized,
			wantErr:     true,
			errContains: "401",
		},
		{
			name:        "empty login",
			login:       "",
			wantErr:     true,
			errContains: "login empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/helix/streams" {
					t.Errorf("path = %s, want /helix/streams", r.URL.Path)
				}
				if r.Header.Get("Client-Id") != "test-client-id" {
					t.Errorf("missing or wrong Client-Id header")
				}
				if r.Header.Get("Authorization") != "Bearer test-token" {
					t.Errorf("missing or wrong Authorization header")
				}
				if got := r.URL.Query().Get("user_login"); got != tt.login {
					t.Errorf("user_login = %q, want %q", got, tt.login)
				}
				w.WriteHeader(tt.statusCode)
				if tt.response != nil {
					_ = json.NewEncoder(w).Encode(tt.response)
				}
			})

			streams, err := client.GetStreams(context.Background(), tt.login)
			if tt.wantErr {
				if err == nil {
					t.Errorf("GetStreams() error = nil, want error containing %q", tt.errContains)
				} else if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("GetStreams() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetStreams() unexpected error = %v", err)
			}
			if len(streams) != tt.wantStreams {
				t.Fatalf("GetStreams() returned %d streams, want %d", len(streams), tt.wantStreams)
			}
			if tt.wantStreams > 0 {
				want := time.Date(2024, 10, 15, 14, 30, 0, 0, time.UTC)
				if !streams[0].StartedAt.Equal(want) || streams[0].Title != "Live Now" || streams[0].ViewerCount != 12 {
					t.Errorf("stream = %+v", streams[0])
				}
			}
		})
	}
}

func TestHelixClient_IsLive(t *testing.T) {
	live := true
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data := []map[string]string{}
		if live {
			data = append(data, map[string]string{"id": "1", "user_login": "glitch_it"})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	})

	got, err := client.IsLive(context.Background(), "glitch_it")
	if err != nil || !got {
		t.Fatalf("IsLive() = %v, %v; want true", got, err)
	}
	live = false
	got, err = client.IsLive(context.Background(), "glitch_it")
	if err != nil || got {
		t.Fatalf("IsLive() = %v, %v; want false", got, err)
	}
}

func TestHelixClient_DisplayName(t *testing.T) {
	tests := []struct {
		name        string
		users       []map[string]string
		want        string
		errContains string
	}{
		{"display name", []map[string]string{{"id": "141981764", "login": "twitchdev", "display_name": "TwitchDev"}}, "TwitchDev", ""},
		{"falls back to login", []map[string]string{{"id": "141981764", "login": "twitchdev"}}, "twitchdev", ""},
		{"not found", []map[string]string{}, "", "user not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/helix/users" {
					t.Errorf("path = %s, want /helix/users", r.URL.Path)
				}
				if got := r.URL.Query()["id"]; len(got) != 1 || got[0] != "141981764" {
					t.Errorf("id query = %v", got)
				}
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": tt.users})
			})
			got, err := client.DisplayName(context.Background(), "141981764")
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("DisplayName() error = %v, want %q", err, tt.errContains)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("DisplayName() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestHelixClient_GetUsersLimits(t *testing.T) {
	client := &HelixClient{AppTokenSource: &TokenSource{}}
	if _, err := client.GetUsers(context.Background()); err == nil {
		t.Error("expected error for no ids")
	}
	ids := make([]string, 101)
	if _, err := client.GetUsers(context.Background(), ids...); err == nil {
		t.Error("expected error for more than 100 ids")
	}
}

func TestHelixClient_BaseURLOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mock/streams" {
			t.Errorf("path = %s, want /mock/streams", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": []map[string]string{}})
	}))
	defer server.Close()
	ts := &TokenSource{}
	ts.SetToken("test-token", time.Now().Add(time.Hour))
	client := &HelixClient{AppTokenSource: ts, ClientID: "id", BaseURL: server.URL + "/mock"}
	if _, err := client.GetStreams(context.Background(), "someone"); err != nil {
		t.Fatalf("GetStreams() error = %v", err)
	}
}

// rewriteTransport sends every request to the test server, keeping the path.
type rewriteTransport struct {
	Transport http.RoundTripper
	host      string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	if t.host != "" {
		host := t.host
		host = strings.TrimPrefix(host, "http://")
		host = strings.TrimPrefix(host, "https://")
		req.URL.Host = host
	}
	return t.Transport.RoundTrip(req)
}
