package server

import (
	"context"
	"time"

	"github.com/onnwee/meme-machine/stream"
)

// Pinger is satisfied by records.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SnapshotProvider is satisfied by *stream.Poller.
type SnapshotProvider interface {
	Snapshot() stream.Snapshot
}

// Check is one named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Options wires the handlers to the running bot.
type Options struct {
	Store        Pinger
	StoreBackend string
	// Checks run after the store ping on /readyz, in order.
	Checks   []Check
	Streamer stream.Streamer
	// Poller is nil when status polling is disabled.
	Poller  SnapshotProvider
	Version string
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	opts    Options
	started time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(opts Options) *Handlers {
	return &Handlers{opts: opts, started: time.Now()}
}
