package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix and OAuth responses.
// Point twitchapi.HelixClient.BaseURL at HelixURL and TokenSource.TokenURL at TokenURL.
type MockTwitchServer struct {
	*httptest.Server

	mu       sync.RWMutex
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		handler, ok := m.Handlers[r.URL.Path]
		m.mu.RUnlock()
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// HelixURL is the Helix API root served by the mock.
func (m *MockTwitchServer) HelixURL() string { return m.URL + "/helix" }

// TokenURL is the OAuth2 token endpoint served by the mock.
func (m *MockTwitchServer) TokenURL() string { return m.URL + "/oauth2/token" }

func (m *MockTwitchServer) handle(path string, fn http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers[path] = fn
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockUserResponse adds a handler for /helix/users endpoint
func (m *MockTwitchServer) MockUserResponse(userID, login, displayName string) {
	m.handle("/helix/users", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != userID {
			writeJSON(w, map[string]any{"data": []any{}})
			return
		}
		writeJSON(w, map[string]any{
			"data": []map[string]string{
				{"id": userID, "login": login, "display_name": displayName},
			},
		})
	})
}

// MockStreamsResponse adds a handler for /helix/streams endpoint
func (m *MockTwitchServer) MockStreamsResponse(streams []map[string]any) {
	m.handle("/helix/streams", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": streams})
	})
}

// MockStreamsError makes /helix/streams fail with status.
func (m *MockTwitchServer) MockStreamsError(status int) {
	m.handle("/helix/streams", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(status), status)
	})
}

// MockOAuthTokenResponse adds a handler for OAuth token endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.handle("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		})
	})
}
