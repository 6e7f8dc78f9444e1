package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/arakichanxd/Agent-Connect/internal/api"
	"github.com/arakichanxd/Agent-Connect/internal/api/middleware"
	"github.com/arakichanxd/Agent-Connect/internal/config"
	"github.com/arakichanxd/Agent-Connect/internal/handlers"
	"github.com/arakichanxd/Agent-Connect/internal/notify"
	"github.com/arakichanxd/Agent-Connect/internal/outbound"
	"github.com/arakichanxd/Agent-Connect/internal/peers"
	"github.com/arakichanxd/Agent-Connect/internal/presence"
	"github.com/arakichanxd/Agent-Connect/internal/reply"
	"github.com/arakichanxd/Agent-Connect/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize SQLite store
	st, err := store.NewSQLiteStore(ctx, cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("store initialization failed")
	}
	defer st.Close()
	logger.Info().Msg("store ready")

	// Notification sink: structured log, plus an external webhook if configured
	var sink notify.Sink = notify.LogSink{Logger: logger}
	if cfg.NotifyWebhookURL != "" {
		sink = notify.Multi{sink, notify.NewWebhookSink(cfg.NotifyWebhookURL)}
	}

	// Reply generator; empty text disables automatic replies
	var generator reply.Generator
	if cfg.AutoReplyText != "" {
		generator = reply.Static{Text: cfg.AutoReplyText}
	}

	client := outbound.NewClient(logger)

	svc := peers.NewService(peers.Options{
		Store:     st,
		Client:    client,
		Sink:      sink,
		Generator: generator,
		Logger:    logger,
		AgentName: cfg.AgentName,
		Reach:     peers.StaticURL(cfg.PublicURL),
		Cooldown: peers.Cooldown{
			MaxExchanges: cfg.MaxExchanges,
			Window:       cfg.Cooldown,
		},
	})

	// Rate limit state lives here, in memory, and is swept periodically
	limiter := middleware.NewLimiter(nil, logger, cfg.RateLimitWhitelist)
	go limiter.SweepLoop(ctx, 5*time.Minute)

	// Presence tracker probes paired peers in the background
	tracker := presence.NewTracker(presence.Options{
		Store:        st,
		Client:       client,
		Logger:       logger,
		AgentName:    cfg.AgentName,
		Interval:     cfg.HeartbeatInterval,
		OfflineAfter: cfg.OfflineAfter,
	})
	go tracker.Run(ctx)

	// Create router
	h := handlers.NewHandler(svc, limiter, logger, cfg.AgentName, nil)
	router := api.NewRouter(logger, h)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("agent", cfg.AgentName).
			Msg("starting agent-connect server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	sink.Notify(notify.NewEvent(notify.EventServiceStarted, "", cfg.AgentName))

	// Wait for interrupt signal
	<-ctx.Done()
	stop()

	logger.Info().Msg("shutting down server...")
	sink.Notify(notify.NewEvent(notify.EventServiceStopped, "", cfg.AgentName))

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
