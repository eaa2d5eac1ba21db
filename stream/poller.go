// Package stream polls a streamer's live status and announces when they go live.
//
// The poller keeps a single boolean: the last status it saw. Only the
// offline → live edge produces an announcement; consecutive live ticks and
// failed checks are silent, and going offline re-arms the next announcement.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/meme-machine/telemetry"
)

// DefaultInterval matches the two minute cadence the bot has always used.
const DefaultInterval = 2 * time.Minute

// Streamer identifies whose stream is watched and how it is presented.
type Streamer struct {
	Name  string // display name used in messages
	Login string // Twitch login used for lookups
	Link  string
}

// Announcement is the text posted on the offline → live edge.
func (s Streamer) Announcement() string {
	return fmt.Sprintf("%s is now live! Watch here:\n%s", s.Name, s.Link)
}

// Checker reports whether a login is currently live.
type Checker interface {
	IsLive(ctx context.Context, login string) (bool, error)
}

// Announcer delivers a message to a channel.
type Announcer interface {
	Send(ctx context.Context, channelID, text string) error
}

// Tracker is the edge detector. The zero value starts offline.
type Tracker struct {
	live bool
}

// Observe records the latest status and reports whether it is an offline → live transition.
func (t *Tracker) Observe(live bool) (announce bool) {
	switch {
	case !t.live && live:
		t.live = true
		return true
	case t.live && !live:
		t.live = false
	}
	return false
}

// Live returns the last observed status.
func (t *Tracker) Live() bool { return t.live }

// Snapshot is the poller state exposed on /status.
type Snapshot struct {
	Live      bool      `json:"live"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// Poller checks Checker every Interval and announces to ChannelID through Announcer.
type Poller struct {
	Streamer  Streamer
	Checker   Checker
	Announcer Announcer
	ChannelID string
	Interval  time.Duration
	// CheckTimeout bounds one status request (default 10s).
	CheckTimeout time.Duration

	mu      sync.Mutex
	tracker Tracker
	snap    Snapshot
}

// Run checks immediately, then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("stream poller: started", slog.String("streamer", p.Streamer.Login), slog.Duration("interval", interval), slog.String("component", "stream_poller"))
	for {
		if ctx.Err() != nil {
			return
		}
		p.checkOnce(ctx)
		select {
		case <-ctx.Done():
			slog.Info("stream poller: stopped", slog.String("component", "stream_poller"))
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) checkOnce(ctx context.Context) {
	timeout := p.CheckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	live, err := p.Checker.IsLive(cctx, p.Streamer.Login)
	cancel()

	p.mu.Lock()
	p.snap.LastCheck = time.Now().UTC()
	if err != nil {
		// Keep the last known status; a failed check is not a transition.
		p.snap.LastError = err.Error()
		p.mu.Unlock()
		telemetry.ObserveStreamCheck("error", false)
		slog.Warn("stream poller: status check failed", slog.String("streamer", p.Streamer.Login), slog.Any("err", err), slog.String("component", "stream_poller"))
		return
	}
	p.snap.LastError = ""
	announce := p.tracker.Observe(live)
	p.snap.Live = p.tracker.Live()
	p.mu.Unlock()

	result := "offline"
	if live {
		result = "live"
	}
	telemetry.ObserveStreamCheck(result, live)
	slog.Debug("stream poller: checked", slog.String("streamer", p.Streamer.Login), slog.Bool("live", live), slog.String("component", "stream_poller"))
	if !announce {
		return
	}
	slog.Info("stream poller: streamer went live", slog.String("streamer", p.Streamer.Login), slog.String("component", "stream_poller"))
	if err := p.Announcer.Send(ctx, p.ChannelID, p.Streamer.Announcement()); err != nil {
		slog.Error("stream poller: announcement failed", slog.String("channel", p.ChannelID), slog.Any("err", err), slog.String("component", "stream_poller"))
		return
	}
	telemetry.IncAnnouncement()
}

// Snapshot returns a copy of the current poller state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}
