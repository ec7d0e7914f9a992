// Package store provides the persistence gateway mirroring bots, guidelines,
// and journeys from the remote agent service into a document store.
//
// All orchestrator code depends on this interface, making it easy to swap
// between in-memory (tests, zero-config dev) and MongoDB (production)
// implementations.
package store

import (
	"context"

	"github.com/botforge/botforge/pkg/models"
)

// Store is the persistence gateway for the control plane.
type Store interface {
	BotStore
	GuidelineStore
	JourneyStore

	// Ping checks if the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close(ctx context.Context) error
}

// ── Bot Store ───────────────────────────────────────────────

type BotStore interface {
	// UpsertBot inserts or replaces a bot keyed by its external BotID.
	// If a different bot already holds the same idempotency key the write
	// is rejected with *ErrDuplicateKey; this is what makes
	// exactly-once-per-key a guarantee rather than an accident.
	UpsertBot(ctx context.Context, bot *models.Bot) error

	GetBot(ctx context.Context, botID string) (*models.Bot, error)

	// FindBotByIdempotencyKey returns the bot holding the given key, or
	// *ErrNotFound when no creation has claimed it.
	FindBotByIdempotencyKey(ctx context.Context, key string) (*models.Bot, error)

	ListBots(ctx context.Context) ([]models.Bot, error)
	ListBotsByStatus(ctx context.Context, status models.BotStatus) ([]models.Bot, error)

	// UpdateBotState replaces only the lifecycle state of a bot.
	UpdateBotState(ctx context.Context, botID string, state models.BotState) error

	// RemapBotID rewrites a bot's external ID and cascades the change to
	// all child records. Used when the remote service reassigns IDs
	// across restarts.
	RemapBotID(ctx context.Context, oldID, newID string) error

	// DeleteBot removes the bot and cascades deletion to its guidelines
	// and journeys.
	DeleteBot(ctx context.Context, botID string) error
}

// ── Guideline Store ─────────────────────────────────────────

type GuidelineStore interface {
	UpsertGuideline(ctx context.Context, guideline *models.Guideline) error
	GetGuideline(ctx context.Context, guidelineID string) (*models.Guideline, error)
	ListGuidelines(ctx context.Context, botID string) ([]models.Guideline, error)
	DeleteGuideline(ctx context.Context, guidelineID string) error

	// MarkGuidelineDrift flags a record whose remote counterpart changed
	// but whose mirror write failed.
	MarkGuidelineDrift(ctx context.Context, guidelineID string) error
}

// ── Journey Store ───────────────────────────────────────────

type JourneyStore interface {
	UpsertJourney(ctx context.Context, journey *models.Journey) error
	GetJourney(ctx context.Context, journeyID string) (*models.Journey, error)
	ListJourneys(ctx context.Context, botID string) ([]models.Journey, error)
	DeleteJourney(ctx context.Context, journeyID string) error
	MarkJourneyDrift(ctx context.Context, journeyID string) error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ErrDuplicateKey is returned when a write collides with the unique
// idempotency-key constraint.
type ErrDuplicateKey struct {
	Key           string
	ExistingBotID string
}

func (e *ErrDuplicateKey) Error() string {
	return "idempotency key already claimed: " + e.Key
}
