// Package server provides the public entry point for initializing the
// BotForge control plane server.
//
// This package exists in pkg/ (not internal/) so that deployment wrappers
// can import it and compose the server with their own middleware.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/botforge/botforge/internal/api"
	"github.com/botforge/botforge/internal/api/handlers"
	"github.com/botforge/botforge/internal/config"
	"github.com/botforge/botforge/internal/orchestrator"
	"github.com/botforge/botforge/internal/reconcile"
	"github.com/botforge/botforge/internal/rehydrate"
	"github.com/botforge/botforge/internal/remote"
	"github.com/botforge/botforge/internal/store"
	"github.com/botforge/botforge/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized BotForge control plane.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the domain mirror (MongoDB when configured, file-backed
	// memory store otherwise).
	Store store.Store

	// Rehydrator replays the mirror into the agent service.
	Rehydrator *rehydrate.Rehydrator

	// Sweeper reports bots stuck in PARTIALLY_CREATED.
	Sweeper *reconcile.Sweeper

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all control plane components and returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the control plane with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var dataStore store.Store
	if cfg.Mongo.URI != "" {
		mongoStore, err := store.NewMongoStore(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("init mongo store: %w", err)
		}
		dataStore = mongoStore
		log.Info().Msg("✅ MongoDB store initialized")
	} else {
		dataStore = store.NewMemoryStore()
		log.Info().Msg("✅ Memory store initialized (MONGODB_URI not set)")
	}

	client := remote.NewClient(cfg.Remote)
	orch := orchestrator.New(client, dataStore, cfg)
	rh := rehydrate.New(client, dataStore, cfg)
	sweeper := reconcile.NewSweeper(dataStore, cfg.Reconcile.SweepInterval)

	log.Info().Str("base_url", cfg.Remote.BaseURL).Msg("✅ Agent service client initialized")
	log.Info().Msg("✅ Orchestrator initialized")

	h := handlers.New(orch, rh, dataStore)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Rehydrator:   rh,
		Sweeper:      sweeper,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
