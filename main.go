// Command backend is the Secousse player's local API. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Serves the HTTP API the frontend talks to: chat gateway control plus an
//     SSE event stream, stream/channel metadata, playback URLs, emotes and
//     badges, the Twitch OAuth login flow, health and metrics.
//   - Runs background jobs: the OAuth token refresher and the minute-watched
//     reporting loop.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/secousse/backend/chat"
	"github.com/secousse/backend/config"
	"github.com/secousse/backend/db"
	"github.com/secousse/backend/emotes"
	"github.com/secousse/backend/oauth"
	"github.com/secousse/backend/server"
	"github.com/secousse/backend/telemetry"
	"github.com/secousse/backend/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

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
	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("secousse-backend", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()
	if err := db.Migrate(context.Background(), database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stable device id, minted once and persisted so Twitch sees the same
	// player across restarts.
	deviceID, err := db.GetKV(ctx, database, "device_id")
	if err != nil {
		slog.Error("device id lookup failed", slog.Any("err", err))
		os.Exit(1)
	}
	if deviceID == "" {
		deviceID = strings.ReplaceAll(uuid.New().String(), "-", "")
		if err := db.SetKV(ctx, database, "device_id", deviceID); err != nil {
			slog.Error("device id persist failed", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("minted device id")
	}

	tokens := &twitchapi.StoreTokenSource{DB: database}
	twitch := &twitchapi.Client{
		TokenSource: tokens,
		DeviceID:    deviceID,
	}

	oauthConf := twitchapi.NewOAuthConfig(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchRedirectURI, cfg.TwitchScopes)

	// Background refresh of the stored user token. The handler invalidates
	// the in-memory cache on logout/login; the refresher keeps the row fresh.
	oauth.StartRefresher(ctx, database, twitchapi.TokenProvider, 5*time.Minute, 15*time.Minute, func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		tok, err := twitchapi.RefreshToken(rctx, oauthConf, refreshToken)
		if err != nil {
			return "", "", time.Time{}, "", err
		}
		tokens.Invalidate()
		return tok.AccessToken, tok.RefreshToken, twitchapi.ComputeExpiry(tok.Expiry), twitchapi.TokenScope(tok), nil
	})

	hub := server.NewHub()
	handlers := server.NewHandlers(server.Deps{
		DB:        database,
		Cfg:       cfg,
		Twitch:    twitch,
		Emotes:    &emotes.Fetcher{},
		Chat:      chat.NewManager(server.ChatSink(hub)),
		Hub:       hub,
		OAuthConf: oauthConf,
		Tokens:    tokens,
	})
	handlers.StartSpadeLoop(ctx)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewMux(handlers),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: the SSE event stream stays open indefinitely.
		IdleTimeout: 120 * time.Second,
	}
	go func() {
		slog.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server exited with error", slog.Any("err", err))
			stop()
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", slog.Any("err", err))
	}
}
