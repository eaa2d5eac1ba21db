// Package discord connects the command router to a Discord bot account.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/meme-machine/bot"
)

// StartupMessage is posted to the testing channel once the gateway session is ready.
const StartupMessage = "Beep boop. Meme Machine at your service."

const platform = "discord"

// maxMessageLen is the longest message content Discord accepts.
const maxMessageLen = 2000

// Handler consumes one chat message. *bot.Router implements it.
type Handler interface {
	Handle(ctx context.Context, msg bot.Message, resp bot.Responder) error
}

// restAPI is the slice of *discordgo.Session used for outbound calls.
type restAPI interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// Bot is the Discord transport: it feeds message-create events into a Handler and
// implements bot.Responder and bot.UserResolver on top of the REST API.
type Bot struct {
	session          *discordgo.Session
	api              restAPI
	handler          Handler
	testingChannelID string

	mu      sync.RWMutex
	baseCtx context.Context
	ready   atomic.Bool
}

// New creates a session for token without connecting it.
func New(token string, handler Handler, testingChannelID string) (*Bot, error) {
	if token == "" {
		return nil, errors.New("discord: token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	b := &Bot{
		session:          s,
		api:              s,
		handler:          handler,
		testingChannelID: testingChannelID,
		baseCtx:          context.Background(),
	}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onMessageCreate)
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		b.ready.Store(false)
		slog.Warn("discord: gateway disconnected", slog.String("component", "discord"))
	})
	return b, nil
}

// Open connects to the gateway. Handlers run with ctx as their parent context.
func (b *Bot) Open(ctx context.Context) error {
	b.mu.Lock()
	b.baseCtx = ctx
	b.mu.Unlock()
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	b.ready.Store(false)
	if b.session == nil {
		return nil
	}
	return b.session.Close()
}

// Check reports an error until the gateway session has received Ready.
func (b *Bot) Check(context.Context) error {
	if !b.ready.Load() {
		return errors.New("discord session not ready")
	}
	return nil
}

func (b *Bot) parentCtx() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.baseCtx
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.ready.Store(true)
	slog.Info("discord: logged in", slog.String("user", r.User.String()), slog.String("component", "discord"))
	b.announceStartup(b.parentCtx())
}

func (b *Bot) announceStartup(ctx context.Context) {
	if b.testingChannelID == "" {
		return
	}
	if err := b.Send(ctx, b.testingChannelID, StartupMessage); err != nil {
		slog.Error("discord: startup message", slog.String("channel", b.testingChannelID), slog.Any("err", err), slog.String("component", "discord"))
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	b.handleMessage(b.parentCtx(), selfID, m.Message)
}

func (b *Bot) handleMessage(ctx context.Context, selfID string, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot || m.Author.ID == selfID {
		return
	}
	created := m.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	msg := bot.Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		Platform:   platform,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		Content:    m.Content,
		CreatedAt:  created.UTC(),
	}
	if err := b.handler.Handle(ctx, msg, b); err != nil {
		slog.Warn("discord: handle message", slog.String("channel", m.ChannelID), slog.Any("err", err), slog.String("component", "discord"))
	}
}

// Send posts text to channelID, cut to Discord's message length limit.
func (b *Bot) Send(ctx context.Context, channelID, text string) error {
	if _, err := b.api.ChannelMessageSend(channelID, truncate(text), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// truncate cuts text to maxMessageLen runes, ending in "..." when shortened.
func truncate(text string) string {
	if r := []rune(text); len(r) > maxMessageLen {
		return string(r[:maxMessageLen-3]) + "..."
	}
	return text
}

// Delete removes a message. The bot needs Manage Messages in the channel.
func (b *Bot) Delete(ctx context.Context, channelID, messageID string) error {
	if err := b.api.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord delete: %w", err)
	}
	return nil
}

// DisplayName returns the current username for a Discord user id.
func (b *Bot) DisplayName(ctx context.Context, userID string) (string, error) {
	u, err := b.api.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord user %s: %w", userID, err)
	}
	return u.Username, nil
}
