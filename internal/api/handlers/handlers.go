// Package handlers implements the HTTP handlers for the BotForge control
// plane. Handlers translate between the REST surface and the orchestrator;
// no business rules live here.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/botforge/botforge/internal/orchestrator"
	"github.com/botforge/botforge/internal/rehydrate"
	"github.com/botforge/botforge/internal/remote"
	"github.com/botforge/botforge/internal/store"
	"github.com/botforge/botforge/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Orch       *orchestrator.Orchestrator
	Rehydrator *rehydrate.Rehydrator
	Store      store.Store
}

// New creates a new Handlers instance with all dependencies.
func New(orch *orchestrator.Orchestrator, rh *rehydrate.Rehydrator, st store.Store) *Handlers {
	return &Handlers{Orch: orch, Rehydrator: rh, Store: st}
}

// ── Bot Handlers ────────────────────────────────────────────

func (h *Handlers) CreateBot(w http.ResponseWriter, r *http.Request) {
	var spec models.BotSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result := h.Orch.CreateBot(r.Context(), &spec)
	respondJSON(w, creationStatusCode(result), result)
}

// creationStatusCode maps a creation result to an HTTP status. The result
// body already carries the full outcome; the code is a summary for clients
// that only look at status lines.
func creationStatusCode(result *models.CreationResult) int {
	if result.Success {
		for _, e := range result.Errors {
			if e.Kind == models.ErrorIdempotencyConflict {
				return http.StatusOK
			}
		}
		return http.StatusCreated
	}
	for _, e := range result.Errors {
		if e.Kind == models.ErrorValidation {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusBadGateway
}

func (h *Handlers) ListBots(w http.ResponseWriter, r *http.Request) {
	bots, err := h.Orch.ListBots(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bots == nil {
		bots = []models.Bot{}
	}
	respondJSON(w, http.StatusOK, bots)
}

func (h *Handlers) GetBot(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	detail, err := h.Orch.GetBot(r.Context(), botID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handlers) UpdateBot(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	bot, mirrored, err := h.Orch.UpdateBot(r.Context(), botID, updates)
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"bot":      bot,
		"mirrored": mirrored,
	})
}

func (h *Handlers) DeleteBot(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	if err := h.Orch.DeleteBot(r.Context(), botID); err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	log.Info().Str("bot_id", botID).Msg("Bot deleted")
	respondJSON(w, http.StatusOK, map[string]string{"deleted": botID})
}

// ── Guideline Handlers ──────────────────────────────────────

func (h *Handlers) AddGuideline(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	var spec models.GuidelineSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if spec.Condition == "" {
		respondError(w, http.StatusUnprocessableEntity, "condition is required")
		return
	}

	guideline, mirrored, err := h.Orch.AddGuideline(r.Context(), botID, spec)
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"guideline": guideline,
		"mirrored":  mirrored,
	})
}

func (h *Handlers) ListGuidelines(w http.ResponseWriter, r *http.Request) {
	guidelines, err := h.Orch.ListRemoteGuidelines(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	if guidelines == nil {
		guidelines = []remote.Guideline{}
	}
	respondJSON(w, http.StatusOK, guidelines)
}

func (h *Handlers) GetGuideline(w http.ResponseWriter, r *http.Request) {
	guidelineID := chi.URLParam(r, "guidelineID")
	guideline, err := h.Orch.GetRemoteGuideline(r.Context(), guidelineID)
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, guideline)
}

func (h *Handlers) UpdateGuideline(w http.ResponseWriter, r *http.Request) {
	guidelineID := chi.URLParam(r, "guidelineID")
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mirrored, err := h.Orch.UpdateGuideline(r.Context(), guidelineID, updates)
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"guideline_id": guidelineID,
		"mirrored":     mirrored,
	})
}

func (h *Handlers) DeleteGuideline(w http.ResponseWriter, r *http.Request) {
	guidelineID := chi.URLParam(r, "guidelineID")
	if err := h.Orch.DeleteGuideline(r.Context(), guidelineID); err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": guidelineID})
}

// ── Journey Handlers ────────────────────────────────────────

func (h *Handlers) AddJourney(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	var spec models.JourneySpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if spec.Title == "" || len(spec.Conditions) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "title and conditions are required")
		return
	}

	journey, mirrored, err := h.Orch.AddJourney(r.Context(), botID, spec)
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"journey":  journey,
		"mirrored": mirrored,
	})
}

func (h *Handlers) ListJourneys(w http.ResponseWriter, r *http.Request) {
	journeys, err := h.Orch.ListRemoteJourneys(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	if journeys == nil {
		journeys = []remote.Journey{}
	}
	respondJSON(w, http.StatusOK, journeys)
}

func (h *Handlers) GetJourney(w http.ResponseWriter, r *http.Request) {
	journeyID := chi.URLParam(r, "journeyID")
	journey, err := h.Orch.GetRemoteJourney(r.Context(), journeyID)
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, journey)
}

func (h *Handlers) UpdateJourney(w http.ResponseWriter, r *http.Request) {
	journeyID := chi.URLParam(r, "journeyID")
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mirrored, err := h.Orch.UpdateJourney(r.Context(), journeyID, updates)
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"journey_id": journeyID,
		"mirrored":   mirrored,
	})
}

func (h *Handlers) DeleteJourney(w http.ResponseWriter, r *http.Request) {
	journeyID := chi.URLParam(r, "journeyID")
	if err := h.Orch.DeleteJourney(r.Context(), journeyID); err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": journeyID})
}

// ── Session Handlers ────────────────────────────────────────

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	var req struct {
		CustomerID string `json:"customer_id"`
	}
	// Body is optional
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.CustomerID == "" {
		req.CustomerID = "guest-" + uuid.NewString()
	}

	session, err := h.Orch.CreateSession(r.Context(), botID, req.CustomerID)
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.Orch.GetSession(r.Context(), sessionID)
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.Orch.DeleteSession(r.Context(), sessionID); err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": sessionID})
}

func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusUnprocessableEntity, "message is required")
		return
	}

	if err := h.Orch.SendMessage(r.Context(), sessionID, req.Message); err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
}

func (h *Handlers) GetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	events, err := h.Orch.GetMessages(r.Context(), sessionID)
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	if events == nil {
		events = []remote.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

// ── Admin Handlers ──────────────────────────────────────────

func (h *Handlers) ListPartiallyCreated(w http.ResponseWriter, r *http.Request) {
	bots, err := h.Orch.ListPartiallyCreated(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bots == nil {
		bots = []models.Bot{}
	}
	respondJSON(w, http.StatusOK, bots)
}

func (h *Handlers) ReconcileBot(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	bot, err := h.Orch.ReconcileBot(r.Context(), botID)
	if err != nil {
		respondUpstreamOrStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bot)
}

func (h *Handlers) Rehydrate(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Rehydrator.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// ── Helpers ─────────────────────────────────────────────────

func respondStoreError(w http.ResponseWriter, err error) {
	var nf *store.ErrNotFound
	if errors.As(err, &nf) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

// respondUpstreamOrStoreError maps the two failure families handlers see:
// store errors and normalized remote errors. Remote failures carry the
// upstream status when it was an HTTP error, 502 otherwise.
func respondUpstreamOrStoreError(w http.ResponseWriter, err error) {
	var nf *store.ErrNotFound
	if errors.As(err, &nf) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	var re *remote.Error
	if errors.As(err, &re) {
		status := http.StatusBadGateway
		if re.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		respondError(w, status, re.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
