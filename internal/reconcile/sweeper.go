// Package reconcile runs the background sweep over bots stuck in
// PARTIALLY_CREATED. The sweep only surfaces them; repair itself goes
// through the admin reconcile endpoint, since flipping a bot back to
// CREATED requires confirming the remote agent still exists.
package reconcile

import (
	"context"
	"time"

	"github.com/botforge/botforge/internal/store"
	"github.com/botforge/botforge/pkg/models"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically reports bots awaiting reconciliation.
type Sweeper struct {
	store    store.Store
	interval time.Duration
}

// NewSweeper builds a sweeper over the given store.
func NewSweeper(st store.Store, interval time.Duration) *Sweeper {
	return &Sweeper{store: st, interval: interval}
}

// Start runs the sweep loop until ctx is canceled. One sweep runs
// immediately so a restart surfaces stragglers without waiting a full
// interval.
func (s *Sweeper) Start(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("Reconciliation sweeper started")
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Reconciliation sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many bots await reconciliation.
func (s *Sweeper) Sweep(ctx context.Context) int {
	return s.sweep(ctx)
}

func (s *Sweeper) sweep(ctx context.Context) int {
	bots, err := s.store.ListBotsByStatus(ctx, models.StatusPartiallyCreated)
	if err != nil {
		log.Error().Err(err).Msg("Reconciliation sweep failed")
		return 0
	}
	if len(bots) == 0 {
		log.Debug().Msg("No bots awaiting reconciliation")
		return 0
	}

	now := time.Now().UTC()
	for _, b := range bots {
		log.Warn().
			Str("bot_id", b.BotID).
			Str("name", b.Name).
			Str("last_error", b.State.LastError).
			Dur("age", now.Sub(b.UpdatedAt)).
			Msg("Bot awaiting reconciliation")
	}
	log.Warn().Int("count", len(bots)).Msg("Reconciliation sweep found stuck bots")
	return len(bots)
}
