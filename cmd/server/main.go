package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/distractedCoding/party-playlist/internal/config"
	"github.com/distractedCoding/party-playlist/internal/domain"
	"github.com/distractedCoding/party-playlist/internal/party"
	"github.com/distractedCoding/party-playlist/internal/relay"
	"github.com/distractedCoding/party-playlist/internal/spotify"
	"github.com/distractedCoding/party-playlist/internal/store"
	httpTransport "github.com/distractedCoding/party-playlist/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up logger
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var logger *slog.Logger
	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, logOpts))
	}

	slog.SetDefault(logger)

	logger.Info("starting party playlist server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Select the store: Postgres when configured, in-memory otherwise
	var st store.Store
	if cfg.Storage.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.Storage.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		st = pg
		logger.Info("using postgres store")
	} else {
		st = store.NewMemory()
		logger.Warn("using in-memory store, parties will not survive restarts")
	}
	defer st.Close()

	// Create party hub
	registry := party.NewSessionRegistry()
	hub := party.NewPartyHub(st, registry, party.HubOptions{
		CodeLength:  cfg.Party.CodeLength,
		GracePeriod: cfg.GracePeriod(),
		Settings: domain.PartySettings{
			AllowSelfRemove: cfg.Party.AllowSelfRemove,
		},
	}, logger)
	defer hub.Close()

	// Bridge events across instances when Redis is configured
	if cfg.Storage.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.Storage.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rdb.Close()

		rel := relay.New(rdb, logger)
		hub.AttachSink(rel)

		remote := party.NewBroadcaster(registry, logger)
		go func() {
			if err := rel.Run(ctx, remote.Deliver); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("relay stopped", "error", err)
			}
		}()

		logger.Info("cross-instance relay enabled", "addr", cfg.Storage.RedisAddr)
	}

	// Catalog search and host playback control are optional
	var catalog *spotify.Client
	var playback *spotify.Playback
	if cfg.Spotify.ClientID != "" {
		catalog = spotify.NewClient(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, logger)
		playback = spotify.NewPlayback(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURL, st, logger)
		logger.Info("catalog search and playback control enabled")
	}

	server := httpTransport.NewServer(cfg, hub, st, catalog, playback, logger)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
