// Package api wires the HTTP router for the BotForge control plane.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/botforge/botforge/internal/api/handlers"
	"github.com/botforge/botforge/internal/api/middleware"
	"github.com/botforge/botforge/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(middleware.NewAPIKeyAuth().Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/", versionHandler(cfg))
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/bots", func(r chi.Router) {
			r.Get("/", h.ListBots)
			r.Post("/", h.CreateBot)
			r.Route("/{botID}", func(r chi.Router) {
				r.Get("/", h.GetBot)
				r.Patch("/", h.UpdateBot)
				r.Delete("/", h.DeleteBot)
				r.Post("/guidelines", h.AddGuideline)
				r.Post("/journeys", h.AddJourney)
				r.Post("/sessions", h.CreateSession)
			})
		})

		r.Route("/guidelines", func(r chi.Router) {
			r.Get("/", h.ListGuidelines)
			r.Route("/{guidelineID}", func(r chi.Router) {
				r.Get("/", h.GetGuideline)
				r.Patch("/", h.UpdateGuideline)
				r.Delete("/", h.DeleteGuideline)
			})
		})

		r.Route("/journeys", func(r chi.Router) {
			r.Get("/", h.ListJourneys)
			r.Route("/{journeyID}", func(r chi.Router) {
				r.Get("/", h.GetJourney)
				r.Patch("/", h.UpdateJourney)
				r.Delete("/", h.DeleteJourney)
			})
		})

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Get("/events", h.GetMessages)
			r.Post("/events", h.SendMessage)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/partial", h.ListPartiallyCreated)
			r.Post("/reconcile/{botID}", h.ReconcileBot)
			r.Post("/rehydrate", h.Rehydrate)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "botforge-control-plane",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "botforge-control-plane",
		})
	}
}
