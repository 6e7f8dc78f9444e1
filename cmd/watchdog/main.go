// The watchdog runs the server as a child process and restarts it on crash
// with exponential backoff. Usage:
//
//	watchdog /path/to/server [args...]
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/arakichanxd/Agent-Connect/internal/watchdog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Str("component", "watchdog").
		Logger()

	if len(os.Args) < 2 {
		logger.Fatal().Msg("usage: watchdog <command> [args...]")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := watchdog.NewSupervisor(os.Args[1:], logger)
	if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("supervisor stopped")
	}
	logger.Info().Msg("watchdog stopped")
}
