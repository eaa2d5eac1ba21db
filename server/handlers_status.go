package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/onnwee/meme-machine/stream"
)

type streamerStatus struct {
	Name  string `json:"name"`
	Login string `json:"login"`
	Link  string `json:"link"`
}

type statusResponse struct {
	Streamer     streamerStatus   `json:"streamer"`
	Poller       *stream.Snapshot `json:"poller"`
	StoreBackend string           `json:"store_backend"`
	Version      string           `json:"version,omitempty"`
	Uptime       string           `json:"uptime"`
}

// HandleStatus returns the watched streamer and the poller's last observation.
// poller is null when polling is disabled.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		Streamer: streamerStatus{
			Name:  h.opts.Streamer.Name,
			Login: h.opts.Streamer.Login,
			Link:  h.opts.Streamer.Link,
		},
		StoreBackend: h.opts.StoreBackend,
		Version:      h.opts.Version,
		Uptime:       time.Since(h.started).Truncate(time.Second).String(),
	}
	if h.opts.Poller != nil {
		snap := h.opts.Poller.Snapshot()
		resp.Poller = &snap
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
