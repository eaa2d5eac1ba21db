// Package bot turns chat messages into command replies.
//
// A message is a command when it starts with the configured prefix. The text
// after the prefix is split on single spaces and the first token, lowercased,
// selects the handler. Every command sends exactly one reply through the
// Responder of the platform the message arrived on. A trailing "-hide" token
// additionally deletes the invoking message once the reply is out.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/onnwee/meme-machine/records"
	"github.com/onnwee/meme-machine/stream"
	"github.com/onnwee/meme-machine/telemetry"
)

const hideFlag = "-hide"

// Message is one inbound chat message.
type Message struct {
	ID         string
	ChannelID  string
	Platform   string // "discord" or "twitch"
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

// Responder is the outbound side of a chat platform.
type Responder interface {
	Send(ctx context.Context, channelID, text string) error
	Delete(ctx context.Context, channelID, messageID string) error
}

// UserResolver looks up the current display name for a platform user id.
type UserResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// JokeSource returns one joke per call.
type JokeSource interface {
	Fetch(ctx context.Context) (string, error)
}

// Options configures a Router.
type Options struct {
	Prefix   string
	Owner    string
	Streamer stream.Streamer
	Store    records.Store
	Jokes    JokeSource
	// Admins may delete records.
	Admins []string
	// Resolvers are keyed by Message.Platform.
	Resolvers map[string]UserResolver
	// Intn returns a uniform value in [0, n). Defaults to math/rand/v2.
	Intn func(n int64) int64
}

// Router dispatches commands to their handlers.
type Router struct {
	prefix    string
	owner     string
	streamer  stream.Streamer
	store     records.Store
	jokes     JokeSource
	admins    map[string]struct{}
	resolvers map[string]UserResolver
	intn      func(n int64) int64
}

// New builds a Router. An empty prefix defaults to ">".
func New(o Options) *Router {
	r := &Router{
		prefix:    o.Prefix,
		owner:     o.Owner,
		streamer:  o.Streamer,
		store:     o.Store,
		jokes:     o.Jokes,
		admins:    make(map[string]struct{}, len(o.Admins)),
		resolvers: o.Resolvers,
		intn:      o.Intn,
	}
	if r.prefix == "" {
		r.prefix = ">"
	}
	if r.intn == nil {
		r.intn = rand.Int64N
	}
	for _, id := range o.Admins {
		if id = strings.TrimSpace(id); id != "" {
			r.admins[id] = struct{}{}
		}
	}
	return r
}

// Prefix returns the command prefix the router listens for.
func (r *Router) Prefix() string { return r.prefix }

// Parse splits content into a lowercased command and its arguments.
// ok is false when content does not start with prefix. A trailing "-hide"
// token is dropped from args.
func Parse(prefix, content string) (command string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Split(strings.TrimPrefix(content, prefix), " ")
	command = strings.ToLower(fields[0])
	args = fields[1:]
	if n := len(args); n > 0 && args[n-1] == hideFlag {
		args = args[:n-1]
	}
	return command, args, true
}

// wantsHide reports whether the last space separated token of content is the hide flag.
// The command token itself counts, so ">-hide" hides too.
func wantsHide(prefix, content string) bool {
	fields := strings.Split(strings.TrimPrefix(content, prefix), " ")
	return fields[len(fields)-1] == hideFlag
}

// Handle runs the command in msg, if any, and replies through resp.
// Non-command messages are ignored. The returned error is the reply send error;
// a failed hide delete is only logged.
func (r *Router) Handle(ctx context.Context, msg Message, resp Responder) error {
	command, args, ok := Parse(r.prefix, msg.Content)
	if !ok {
		return nil
	}
	label := command
	if !known(command) {
		label = "unknown"
	}
	if telemetry.GetCorrelation(ctx) == "" {
		ctx = telemetry.WithCorrelation(ctx, msg.Platform+"-"+msg.ID)
	}
	ctx, span := telemetry.StartSpan(ctx, "bot", "bot.command", telemetry.CommandAttr(label), telemetry.PlatformAttr(msg.Platform))
	defer span.End()
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "bot_router"))

	var reply string
	telemetry.TimeFunc(telemetry.CommandDuration, func() {
		reply = r.dispatch(ctx, command, args, msg)
	})
	telemetry.IncCommand(label, msg.Platform)
	logger.Debug("command handled", slog.String("command", label), slog.String("platform", msg.Platform), slog.String("author", msg.AuthorName))

	if err := resp.Send(ctx, msg.ChannelID, reply); err != nil {
		telemetry.RecordError(span, err)
		logger.Error("send reply", slog.String("command", label), slog.String("channel", msg.ChannelID), slog.Any("err", err))
		return err
	}
	telemetry.SetSpanSuccess(span)

	if wantsHide(r.prefix, msg.Content) {
		logger.Info("hiding command message", slog.String("content", msg.Content), slog.String("author", msg.AuthorName))
		if err := resp.Delete(ctx, msg.ChannelID, msg.ID); err != nil {
			if errors.Is(err, errors.ErrUnsupported) {
				logger.Debug("hide not supported on platform", slog.String("platform", msg.Platform))
			} else {
				logger.Warn("delete command message", slog.String("message", msg.ID), slog.Any("err", err))
			}
		}
	}
	return nil
}

func (r *Router) dispatch(ctx context.Context, command string, args []string, msg Message) string {
	switch command {
	case "help":
		return r.help()
	case "ping":
		return "Pong!"
	case "roll":
		return r.roll()
	case "stream":
		return r.streamLink()
	case "addmeme":
		return r.addMeme(ctx, msg, args)
	case "randommeme":
		return r.randomRecord(ctx, records.KindMeme)
	case "addquote":
		return r.addQuote(ctx, msg, args)
	case "randomquote":
		return r.randomRecord(ctx, records.KindQuote)
	case "deletememe":
		return r.deleteRecord(ctx, records.KindMeme, msg, args)
	case "deletequote":
		return r.deleteRecord(ctx, records.KindQuote, msg, args)
	case "dadjoke":
		return r.dadJoke(ctx)
	default:
		return r.unknown(msg)
	}
}

func (r *Router) isAdmin(id string) bool {
	_, ok := r.admins[id]
	return ok
}
