// Package rehydrate restores remote agents from the persisted mirror.
//
// The remote agent service keeps its state in memory; a restart wipes every
// agent, guideline, and journey. The document store survives, so the mirror
// is replayed into the service: each bot is re-created (receiving a fresh
// remote ID), the mirror is remapped from old ID to new, and children are
// re-created under the new agent.
package rehydrate

import (
	"context"
	"fmt"

	"github.com/botforge/botforge/internal/config"
	"github.com/botforge/botforge/internal/remote"
	"github.com/botforge/botforge/internal/store"
	"github.com/botforge/botforge/pkg/models"
	"github.com/rs/zerolog/log"
)

// RemoteAPI is the slice of the agent service client rehydration uses.
type RemoteAPI interface {
	ListAgents(ctx context.Context) ([]remote.Agent, error)
	CreateAgent(ctx context.Context, payload remote.AgentPayload) (*remote.Agent, error)
	CreateGuideline(ctx context.Context, payload remote.GuidelinePayload) (*remote.Guideline, error)
	CreateJourney(ctx context.Context, payload remote.JourneyPayload) (*remote.Journey, error)
}

// Stats summarizes one rehydration run. IDMapping records old remote IDs to
// the fresh IDs the service assigned, so callers holding stale references
// can follow the move.
type Stats struct {
	BotsRestored       int               `json:"bots_restored"`
	GuidelinesRestored int               `json:"guidelines_restored"`
	JourneysRestored   int               `json:"journeys_restored"`
	Errors             []string          `json:"errors"`
	IDMapping          map[string]string `json:"id_mapping"`
}

// Rehydrator replays the persisted mirror into the remote agent service.
type Rehydrator struct {
	remote          RemoteAPI
	store           store.Store
	encoding        models.RemoteEncoding
	systemAgentName string
}

// New wires a rehydrator from its dependencies.
func New(api RemoteAPI, st store.Store, cfg *config.Config) *Rehydrator {
	return &Rehydrator{
		remote:          api,
		store:           st,
		encoding:        cfg.Remote.CompositionEncoding,
		systemAgentName: cfg.SystemAgentName,
	}
}

// Run restores every persisted bot that is missing from the remote service.
// Per-bot failures are collected, not fatal: one unrestorable bot must not
// block the rest of the fleet.
func (r *Rehydrator) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Errors:    []string{},
		IDMapping: map[string]string{},
	}

	bots, err := r.store.ListBots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list persisted bots: %w", err)
	}
	if len(bots) == 0 {
		log.Info().Msg("No persisted bots, nothing to rehydrate")
		return stats, nil
	}

	liveNames, err := r.liveAgentNames(ctx)
	if err != nil {
		return nil, err
	}

	for _, bot := range bots {
		if bot.Name == r.systemAgentName {
			continue
		}
		if liveNames[bot.Name] {
			log.Debug().Str("name", bot.Name).Msg("Agent already live, skipping")
			continue
		}
		if err := r.restoreBot(ctx, bot, stats); err != nil {
			log.Error().Str("bot_id", bot.BotID).Str("name", bot.Name).Err(err).Msg("Bot restore failed")
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", bot.Name, err))
		}
	}

	log.Info().
		Int("bots", stats.BotsRestored).
		Int("guidelines", stats.GuidelinesRestored).
		Int("journeys", stats.JourneysRestored).
		Int("errors", len(stats.Errors)).
		Msg("Rehydration complete")
	return stats, nil
}

func (r *Rehydrator) liveAgentNames(ctx context.Context) (map[string]bool, error) {
	agents, err := r.remote.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list live agents: %w", err)
	}
	names := make(map[string]bool, len(agents))
	for _, a := range agents {
		names[a.Name] = true
	}
	return names, nil
}

// restoreBot re-creates one agent and its children. The persisted
// composition mode may carry either wire variant; it is decoded and
// re-encoded for the configured one.
func (r *Rehydrator) restoreBot(ctx context.Context, bot models.Bot, stats *Stats) error {
	agent, err := r.remote.CreateAgent(ctx, remote.AgentPayload{
		Name:                bot.Name,
		Description:         bot.Description,
		CompositionMode:     models.CompositionModeFromRemote(bot.CompositionMode).Remote(r.encoding),
		MaxEngineIterations: bot.MaxEngineIterations,
	})
	if err != nil {
		return fmt.Errorf("re-create agent: %w", err)
	}

	oldID := bot.BotID
	if oldID != agent.ID {
		if err := r.store.RemapBotID(ctx, oldID, agent.ID); err != nil {
			return fmt.Errorf("remap %s to %s: %w", oldID, agent.ID, err)
		}
	}
	stats.BotsRestored++
	stats.IDMapping[oldID] = agent.ID
	log.Info().Str("old_id", oldID).Str("new_id", agent.ID).Str("name", bot.Name).Msg("Agent restored")

	r.restoreGuidelines(ctx, agent.ID, stats)
	r.restoreJourneys(ctx, agent.ID, stats)
	return nil
}

func (r *Rehydrator) restoreGuidelines(ctx context.Context, botID string, stats *Stats) {
	guidelines, err := r.store.ListGuidelines(ctx, botID)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("list guidelines for %s: %v", botID, err))
		return
	}
	tag := "agent:" + botID
	for _, g := range guidelines {
		created, err := r.remote.CreateGuideline(ctx, remote.GuidelinePayload{
			Condition:   g.Condition,
			Action:      g.Action,
			Description: g.Description,
			Criticality: models.CriticalityFromRemote(g.Criticality).Remote(),
			Tags:        []string{tag},
		})
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("guideline %s: %v", g.GuidelineID, err))
			continue
		}
		// The remote assigned a fresh ID; move the mirror record under it.
		if created.ID != g.GuidelineID {
			if err := r.store.DeleteGuideline(ctx, g.GuidelineID); err != nil {
				log.Warn().Str("guideline_id", g.GuidelineID).Err(err).Msg("Stale guideline record not removed")
			}
			g.GuidelineID = created.ID
			if err := r.store.UpsertGuideline(ctx, &g); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("remirror guideline %s: %v", created.ID, err))
				continue
			}
		}
		stats.GuidelinesRestored++
	}
}

func (r *Rehydrator) restoreJourneys(ctx context.Context, botID string, stats *Stats) {
	journeys, err := r.store.ListJourneys(ctx, botID)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("list journeys for %s: %v", botID, err))
		return
	}
	tag := "agent:" + botID
	for _, j := range journeys {
		created, err := r.remote.CreateJourney(ctx, remote.JourneyPayload{
			Title:       j.Title,
			Description: j.Description,
			Conditions:  j.Conditions,
			Tags:        []string{tag},
		})
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("journey %s: %v", j.JourneyID, err))
			continue
		}
		if created.ID != j.JourneyID {
			if err := r.store.DeleteJourney(ctx, j.JourneyID); err != nil {
				log.Warn().Str("journey_id", j.JourneyID).Err(err).Msg("Stale journey record not removed")
			}
			j.JourneyID = created.ID
			if err := r.store.UpsertJourney(ctx, &j); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("remirror journey %s: %v", created.ID, err))
				continue
			}
		}
		stats.JourneysRestored++
	}
}
