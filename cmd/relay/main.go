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

	goredis "github.com/redis/go-redis/v9"

	"github.com/chatrelay/relay/internal/api"
	"github.com/chatrelay/relay/internal/config"
	"github.com/chatrelay/relay/internal/conversation"
	"github.com/chatrelay/relay/internal/events"
	"github.com/chatrelay/relay/internal/llm"
	"github.com/chatrelay/relay/internal/ratelimit"
	iredis "github.com/chatrelay/relay/internal/redis"
	"github.com/chatrelay/relay/internal/relay"
	"github.com/chatrelay/relay/internal/server"
	"github.com/chatrelay/relay/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional Redis: switches conversation state and rate windows to a
	// backend that survives restarts.
	var (
		redisClient *goredis.Client
		store       conversation.Store
		limiter     ratelimit.Limiter
	)
	if cfg.Redis.Enabled {
		redisClient, err = iredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Error("connecting to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		store = conversation.NewRedisStore(redisClient, cfg.Limits.IdleExpiry)
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.Limits.RateWindow, cfg.Limits.RateLimit)
	} else {
		store = conversation.NewMemoryStore(cfg.Limits.IdleExpiry)
		limiter = ratelimit.NewSlidingWindow(cfg.Limits.RateWindow, cfg.Limits.RateLimit)
	}

	// Optional NATS event publishing.
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = events.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
	}

	llmClient := llm.NewClient(cfg.Anthropic)
	manager := conversation.NewManager(store, llmClient, cfg.Limits.MaxMessages, cfg.Limits.MaxContextTokens)
	svc := relay.New(limiter, manager, llmClient, publisher, cfg.Limits.RateLimit, cfg.Limits.RateWindow)

	// Periodic cleanup of rate windows and idle conversations.
	go func() {
		ticker := time.NewTicker(cfg.Limits.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				svc.RunPeriodicCleanup(ctx)
			}
		}
	}()

	// Telegram transport.
	poller := telegram.NewPoller(
		telegram.NewClient(cfg.Telegram),
		svc,
		cfg.Telegram.PollTimeout,
		cfg.Telegram.EditInterval,
	)
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(ctx)
	}()

	// Admin server.
	handler := relay.NewHandler(svc)
	readyChecks := map[string]func() bool{"redis": nil, "nats": nil}
	if redisClient != nil {
		readyChecks["redis"] = func() bool { return redisClient.Ping(context.Background()).Err() == nil }
	}
	if publisher != nil {
		readyChecks["nats"] = publisher.Healthy
	}
	srv := server.New(cfg.Server, api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		ReadyChecks:        readyChecks,
	}, api.HandlerSet{
		ConversationStats: handler.ConversationStats,
		ClearConversation: handler.ClearConversation,
	}))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("admin server error", "error", err)
		stop()
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		slog.Warn("shutting down admin server", "error", err)
	}
	<-pollerDone
	slog.Info("relay stopped")
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
