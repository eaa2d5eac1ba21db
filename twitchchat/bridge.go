package twitchchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/meme-machine/bot"
)

const (
	platform = "twitch"
	// maxMessageLen is the Twitch chat limit in characters.
	maxMessageLen = 500
)

// ErrUnsupported is returned by Delete.
var ErrUnsupported = fmt.Errorf("twitchchat: delete message: %w", errors.ErrUnsupported)

// Handler consumes one chat message. *bot.Router implements it.
type Handler interface {
	Handle(ctx context.Context, msg bot.Message, resp bot.Responder) error
}

// ircClient is the subset of *twitch.Client the bridge drives.
type ircClient interface {
	OnConnect(func())
	OnPrivateMessage(func(twitch.PrivateMessage))
	Join(channels ...string)
	Say(channel, text string)
	Connect() error
	Disconnect() error
}

// Bridge relays one Twitch channel into a Handler.
type Bridge struct {
	client    ircClient
	channel   string
	handler   Handler
	connected atomic.Bool
}

// New creates a bridge for channel. The oauth: prefix is added to token when missing.
func New(username, token, channel string, handler Handler) *Bridge {
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	return newBridge(twitch.NewClient(username, token), channel, handler)
}

func newBridge(c ircClient, channel string, handler Handler) *Bridge {
	return &Bridge{client: c, channel: strings.ToLower(strings.TrimPrefix(channel, "#")), handler: handler}
}

// Run connects and blocks until ctx is done or the connection fails.
func (b *Bridge) Run(ctx context.Context) error {
	b.client.OnConnect(func() {
		b.connected.Store(true)
		slog.Info("twitch chat: connected", slog.String("channel", b.channel), slog.String("component", "twitch_chat"))
	})
	b.client.OnPrivateMessage(func(pm twitch.PrivateMessage) {
		b.handlePrivateMessage(ctx, pm)
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = b.client.Disconnect()
		case <-stop:
		}
	}()

	b.client.Join(b.channel)
	err := b.client.Connect()
	b.connected.Store(false)
	if ctx.Err() != nil || errors.Is(err, twitch.ErrClientDisconnected) {
		slog.Info("twitch chat: disconnected", slog.String("channel", b.channel), slog.String("component", "twitch_chat"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("twitch chat connect: %w", err)
	}
	return nil
}

// Connected reports whether the IRC connection is up.
func (b *Bridge) Connected() bool { return b.connected.Load() }

func (b *Bridge) handlePrivateMessage(ctx context.Context, pm twitch.PrivateMessage) {
	name := pm.User.DisplayName
	if name == "" {
		name = pm.User.Name
	}
	created := pm.Time
	if created.IsZero() {
		created = time.Now()
	}
	msg := bot.Message{
		ID:         pm.ID,
		ChannelID:  pm.Channel,
		Platform:   platform,
		AuthorID:   pm.User.ID,
		AuthorName: name,
		Content:    pm.Message,
		CreatedAt:  created.UTC(),
	}
	if err := b.handler.Handle(ctx, msg, b); err != nil {
		slog.Warn("twitch chat: handle message", slog.String("channel", pm.Channel), slog.Any("err", err), slog.String("component", "twitch_chat"))
	}
}

// Send says the flattened text in channelID. The IRC client queues writes, so
// the only failure reported is an empty channel.
func (b *Bridge) Send(_ context.Context, channelID, text string) error {
	if channelID == "" {
		channelID = b.channel
	}
	if channelID == "" {
		return errors.New("twitchchat: no channel")
	}
	b.client.Say(channelID, Flatten(text))
	return nil
}

// Delete always returns ErrUnsupported.
func (b *Bridge) Delete(context.Context, string, string) error {
	return ErrUnsupported
}

// Flatten rewrites a multi-line reply into one chat line of at most 500 characters.
func Flatten(text string) string {
	text = strings.ReplaceAll(text, "```", " ")
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > maxMessageLen {
		text = string(r[:maxMessageLen-3]) + "..."
	}
	return text
}
