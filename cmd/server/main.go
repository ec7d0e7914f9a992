// BotForge Control Plane — CRUD gateway and persistence mirror for a
// conversational agent service.
//
// This is the main entry point for the BotForge server. It provides:
//   - Bot creation orchestration (validation, idempotency, retries)
//   - Guideline and journey management
//   - Session pass-through to the agent service
//   - Document-store mirror (MongoDB or file-backed memory store)
//   - Rehydration of remote agents after service restarts

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/botforge/botforge/pkg/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("🤖 BotForge Control Plane starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	defer srv.Store.Close(ctx)
	defer srv.ShutdownFunc(ctx)

	// Replay the mirror into the agent service on boot; a restarted agent
	// service comes up empty.
	if rehydrateOnBoot() {
		if stats, err := srv.Rehydrator.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Boot rehydration failed")
		} else if stats.BotsRestored > 0 {
			log.Info().Int("bots", stats.BotsRestored).Msg("Boot rehydration restored agents")
		}
	}

	go srv.Sweeper.Start(ctx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.Port),
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("🛑 Shutting down gracefully...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().
		Int("port", srv.Port).
		Msg("🔥 BotForge is up!")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func rehydrateOnBoot() bool {
	if v := os.Getenv("BOTFORGE_REHYDRATE_ON_BOOT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return true
}
