// Command meme-machine runs the Meme Machine chat bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Opens the record store (Postgres, SQLite or MongoDB) and creates its schema.
//   - Connects to Discord and, when configured, to Twitch chat, feeding both
//     into the same command router.
//   - Polls Twitch Helix and announces when the streamer goes live.
//   - Posts the optional daily message.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/meme-machine/bot"
	"github.com/onnwee/meme-machine/config"
	"github.com/onnwee/meme-machine/dadjoke"
	"github.com/onnwee/meme-machine/db"
	"github.com/onnwee/meme-machine/discord"
	"github.com/onnwee/meme-machine/records"
	"github.com/onnwee/meme-machine/schedule"
	"github.com/onnwee/meme-machine/server"
	"github.com/onnwee/meme-machine/stream"
	"github.com/onnwee/meme-machine/telemetry"
	"github.com/onnwee/meme-machine/twitchapi"
	"github.com/onnwee/meme-machine/twitchchat"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateDiscordReady(); err != nil {
		slog.Error("discord not configured", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("meme-machine", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("bot exited with error", slog.Any("err", err))
		stop()
		shutdownTracing()
		os.Exit(1)
	}
	slog.Info("shutting down")
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			slog.Error("failed to close store", slog.Any("err", err))
		}
	}()

	streamer := stream.Streamer{Name: cfg.StreamerName, Login: cfg.StreamerLogin, Link: cfg.StreamerLink}

	// Helix is optional: it backs the live poller and Twitch display names.
	var helix *twitchapi.HelixClient
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		helix = &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
			ClientID:       cfg.TwitchClientID,
			HTTPClient:     httpClient(),
		}
	}

	resolvers := map[string]bot.UserResolver{}
	if helix != nil {
		resolvers["twitch"] = helix
	}
	router := bot.New(bot.Options{
		Prefix:    cfg.CommandPrefix,
		Owner:     cfg.BotOwner,
		Streamer:  streamer,
		Store:     store,
		Jokes:     &dadjoke.Client{URL: cfg.DadJokeURL, HTTPClient: httpClient()},
		Admins:    cfg.AdminIDs,
		Resolvers: resolvers,
	})

	dc, err := discord.New(cfg.DiscordToken, router, cfg.TestingChannelID)
	if err != nil {
		return err
	}
	// The router shares the map; the discord resolver is registered before any message arrives.
	resolvers["discord"] = dc
	if err := dc.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("failed to close discord session", slog.Any("err", err))
		}
	}()
	slog.Info("discord connected", slog.String("prefix", router.Prefix()), slog.String("component", "discord"))

	checks := []server.Check{{Name: "discord", Fn: dc.Check}}

	var poller *stream.Poller
	if err := cfg.ValidatePollerReady(); err != nil {
		slog.Info("stream poller disabled", slog.Any("reason", err))
	} else {
		poller = &stream.Poller{
			Streamer:  streamer,
			Checker:   helix,
			Announcer: dc,
			ChannelID: cfg.MainChannelID,
			Interval:  cfg.StreamPollInterval,
		}
		go poller.Run(ctx)
	}

	if err := cfg.ValidateTwitchChatReady(); err != nil {
		slog.Info("twitch chat bridge disabled", slog.Any("reason", err))
	} else {
		bridge := twitchchat.New(cfg.TwitchBotUsername, cfg.TwitchOAuthToken, cfg.TwitchChatChannel, router)
		checks = append(checks, server.Check{Name: "twitch_chat", Fn: func(context.Context) error {
			if !bridge.Connected() {
				return fmt.Errorf("twitch chat not connected")
			}
			return nil
		}})
		go func() {
			if err := bridge.Run(ctx); err != nil {
				slog.Error("twitch chat bridge exited", slog.Any("err", err), slog.String("component", "twitch_chat"))
			}
		}()
	}

	if cfg.DailyMessageText != "" && cfg.MainChannelID != "" {
		loc, err := time.LoadLocation(cfg.DailyMessageTZ)
		if err != nil {
			return fmt.Errorf("daily message tz: %w", err)
		}
		sched, err := schedule.New(loc)
		if err != nil {
			return err
		}
		if _, err := sched.ScheduleDaily(ctx, cfg.DailyMessageTime, cfg.MainChannelID, cfg.DailyMessageText, dc); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				slog.Error("failed to stop scheduler", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/metrics)
	opts := server.Options{
		Store:        store,
		StoreBackend: cfg.StoreBackend,
		Checks:       checks,
		Streamer:     streamer,
		Version:      version,
	}
	if poller != nil {
		opts.Poller = poller
	}
	go func() {
		if err := server.Start(ctx, server.NewHandlers(opts), cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	return nil
}

// openStore connects the configured backend and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config) (records.Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if cfg.StoreBackend == config.BackendMongo {
		s, err := records.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to mongo", slog.String("database", cfg.MongoDatabase), slog.String("component", "store"))
		return s, nil
	}

	dialect, dsn := db.DialectPostgres, cfg.DBDsn
	if cfg.StoreBackend == config.BackendSQLite {
		dialect, dsn = db.DialectSQLite, cfg.SQLitePath
	}
	database, err := db.Connect(dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := database.PingContext(connectCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	slog.Info("running database migrations", slog.String("dialect", string(dialect)), slog.String("component", "db_migrate"))
	if err := db.Migrate(connectCtx, database, dialect); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return records.NewSQLStore(database, dialect), nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
