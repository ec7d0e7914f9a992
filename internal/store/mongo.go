// Package store — MongoDB-backed Store implementation.
//
// Three collections (bots, guidelines, journeys) hold the domain mirror,
// keyed by the external IDs assigned by the remote agent service. A unique
// partial index on bots.idempotency_key turns the lookup-then-create race
// in the creation flow into a hard constraint: a concurrent duplicate
// request loses with a duplicate-key error instead of writing a second bot.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/botforge/botforge/internal/config"
	"github.com/botforge/botforge/pkg/models"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB.
type MongoStore struct {
	client     *mongo.Client
	bots       *mongo.Collection
	guidelines *mongo.Collection
	journeys   *mongo.Collection
}

// NewMongoStore connects to MongoDB, verifies the connection, and ensures
// the indexes the gateway relies on.
func NewMongoStore(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:     client,
		bots:       db.Collection("bots"),
		guidelines: db.Collection("guidelines"),
		journeys:   db.Collection("journeys"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	log.Info().Str("database", cfg.Database).Msg("MongoDB store connected")
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	// Partial: the PARTIALLY_CREATED marker written by a failed persistence
	// path still carries a key, but legacy records may not.
	_, err := s.bots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "idempotency_key", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$type": "string"}}),
	})
	if err != nil {
		return fmt.Errorf("bots idempotency index: %w", err)
	}

	_, err = s.bots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "bot_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("bots id index: %w", err)
	}

	for _, coll := range []*mongo.Collection{s.guidelines, s.journeys} {
		_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "bot_id", Value: 1}},
		})
		if err != nil {
			return fmt.Errorf("%s bot_id index: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ── Bot Store ───────────────────────────────────────────────

// upsertUpdate builds the update document for an upsert: every field goes
// through $set except created_at, which only $setOnInsert may write so a
// later update can never rewind or clobber the original creation time.
func upsertUpdate(doc any, createdAt time.Time) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "created_at")
	return bson.M{
		"$set":         fields,
		"$setOnInsert": bson.M{"created_at": createdAt},
	}, nil
}

func (s *MongoStore) UpsertBot(ctx context.Context, bot *models.Bot) error {
	doc := *bot
	doc.UpdatedAt = time.Now().UTC()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = doc.UpdatedAt
	}

	update, err := upsertUpdate(doc, createdAt)
	if err != nil {
		return fmt.Errorf("encode bot %s: %w", bot.BotID, err)
	}
	_, err = s.bots.UpdateOne(ctx,
		bson.M{"bot_id": bot.BotID},
		update,
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		dup := &ErrDuplicateKey{Key: bot.IdempotencyKey}
		if existing, ferr := s.FindBotByIdempotencyKey(ctx, bot.IdempotencyKey); ferr == nil {
			dup.ExistingBotID = existing.BotID
		}
		return dup
	}
	if err != nil {
		return fmt.Errorf("upsert bot %s: %w", bot.BotID, err)
	}
	return nil
}

func (s *MongoStore) GetBot(ctx context.Context, botID string) (*models.Bot, error) {
	var bot models.Bot
	err := s.bots.FindOne(ctx, bson.M{"bot_id": botID}).Decode(&bot)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "bot", Key: botID}
	}
	if err != nil {
		return nil, fmt.Errorf("get bot %s: %w", botID, err)
	}
	return &bot, nil
}

func (s *MongoStore) FindBotByIdempotencyKey(ctx context.Context, key string) (*models.Bot, error) {
	var bot models.Bot
	err := s.bots.FindOne(ctx, bson.M{"idempotency_key": key}).Decode(&bot)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "bot", Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("find bot by idempotency key: %w", err)
	}
	return &bot, nil
}

func (s *MongoStore) ListBots(ctx context.Context) ([]models.Bot, error) {
	cursor, err := s.bots.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	var bots []models.Bot
	if err := cursor.All(ctx, &bots); err != nil {
		return nil, fmt.Errorf("decode bots: %w", err)
	}
	return bots, nil
}

func (s *MongoStore) ListBotsByStatus(ctx context.Context, status models.BotStatus) ([]models.Bot, error) {
	cursor, err := s.bots.Find(ctx, bson.M{"state.status": status})
	if err != nil {
		return nil, fmt.Errorf("list bots by status: %w", err)
	}
	var bots []models.Bot
	if err := cursor.All(ctx, &bots); err != nil {
		return nil, fmt.Errorf("decode bots: %w", err)
	}
	return bots, nil
}

func (s *MongoStore) UpdateBotState(ctx context.Context, botID string, state models.BotState) error {
	res, err := s.bots.UpdateOne(ctx,
		bson.M{"bot_id": botID},
		bson.M{"$set": bson.M{
			"state":      state,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("update bot state %s: %w", botID, err)
	}
	if res.MatchedCount == 0 {
		return &ErrNotFound{Entity: "bot", Key: botID}
	}
	return nil
}

func (s *MongoStore) RemapBotID(ctx context.Context, oldID, newID string) error {
	res, err := s.bots.UpdateOne(ctx,
		bson.M{"bot_id": oldID},
		bson.M{"$set": bson.M{"bot_id": newID, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("remap bot %s: %w", oldID, err)
	}
	if res.MatchedCount == 0 {
		return &ErrNotFound{Entity: "bot", Key: oldID}
	}

	// Cascade to children. Partial failures leave children orphaned under
	// the old ID; the caller logs them and the next rehydration repairs.
	if _, err := s.guidelines.UpdateMany(ctx,
		bson.M{"bot_id": oldID}, bson.M{"$set": bson.M{"bot_id": newID}}); err != nil {
		return fmt.Errorf("remap guidelines %s: %w", oldID, err)
	}
	if _, err := s.journeys.UpdateMany(ctx,
		bson.M{"bot_id": oldID}, bson.M{"$set": bson.M{"bot_id": newID}}); err != nil {
		return fmt.Errorf("remap journeys %s: %w", oldID, err)
	}
	return nil
}

func (s *MongoStore) DeleteBot(ctx context.Context, botID string) error {
	res, err := s.bots.DeleteOne(ctx, bson.M{"bot_id": botID})
	if err != nil {
		return fmt.Errorf("delete bot %s: %w", botID, err)
	}
	if res.DeletedCount == 0 {
		return &ErrNotFound{Entity: "bot", Key: botID}
	}
	if _, err := s.guidelines.DeleteMany(ctx, bson.M{"bot_id": botID}); err != nil {
		return fmt.Errorf("delete guidelines for %s: %w", botID, err)
	}
	if _, err := s.journeys.DeleteMany(ctx, bson.M{"bot_id": botID}); err != nil {
		return fmt.Errorf("delete journeys for %s: %w", botID, err)
	}
	return nil
}

// ── Guideline Store ─────────────────────────────────────────

func (s *MongoStore) UpsertGuideline(ctx context.Context, guideline *models.Guideline) error {
	doc := *guideline
	doc.UpdatedAt = time.Now().UTC()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = doc.UpdatedAt
	}
	update, err := upsertUpdate(doc, createdAt)
	if err != nil {
		return fmt.Errorf("encode guideline %s: %w", guideline.GuidelineID, err)
	}
	_, err = s.guidelines.UpdateOne(ctx,
		bson.M{"guideline_id": guideline.GuidelineID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert guideline %s: %w", guideline.GuidelineID, err)
	}
	return nil
}

func (s *MongoStore) GetGuideline(ctx context.Context, guidelineID string) (*models.Guideline, error) {
	var g models.Guideline
	err := s.guidelines.FindOne(ctx, bson.M{"guideline_id": guidelineID}).Decode(&g)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "guideline", Key: guidelineID}
	}
	if err != nil {
		return nil, fmt.Errorf("get guideline %s: %w", guidelineID, err)
	}
	return &g, nil
}

func (s *MongoStore) ListGuidelines(ctx context.Context, botID string) ([]models.Guideline, error) {
	cursor, err := s.guidelines.Find(ctx, bson.M{"bot_id": botID})
	if err != nil {
		return nil, fmt.Errorf("list guidelines: %w", err)
	}
	var result []models.Guideline
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode guidelines: %w", err)
	}
	return result, nil
}

func (s *MongoStore) DeleteGuideline(ctx context.Context, guidelineID string) error {
	if _, err := s.guidelines.DeleteOne(ctx, bson.M{"guideline_id": guidelineID}); err != nil {
		return fmt.Errorf("delete guideline %s: %w", guidelineID, err)
	}
	return nil
}

func (s *MongoStore) MarkGuidelineDrift(ctx context.Context, guidelineID string) error {
	res, err := s.guidelines.UpdateOne(ctx,
		bson.M{"guideline_id": guidelineID},
		bson.M{"$set": bson.M{"drift": true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mark guideline drift %s: %w", guidelineID, err)
	}
	if res.MatchedCount == 0 {
		return &ErrNotFound{Entity: "guideline", Key: guidelineID}
	}
	return nil
}

// ── Journey Store ───────────────────────────────────────────

func (s *MongoStore) UpsertJourney(ctx context.Context, journey *models.Journey) error {
	doc := *journey
	doc.UpdatedAt = time.Now().UTC()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = doc.UpdatedAt
	}
	update, err := upsertUpdate(doc, createdAt)
	if err != nil {
		return fmt.Errorf("encode journey %s: %w", journey.JourneyID, err)
	}
	_, err = s.journeys.UpdateOne(ctx,
		bson.M{"journey_id": journey.JourneyID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert journey %s: %w", journey.JourneyID, err)
	}
	return nil
}

func (s *MongoStore) GetJourney(ctx context.Context, journeyID string) (*models.Journey, error) {
	var j models.Journey
	err := s.journeys.FindOne(ctx, bson.M{"journey_id": journeyID}).Decode(&j)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{Entity: "journey", Key: journeyID}
	}
	if err != nil {
		return nil, fmt.Errorf("get journey %s: %w", journeyID, err)
	}
	return &j, nil
}

func (s *MongoStore) ListJourneys(ctx context.Context, botID string) ([]models.Journey, error) {
	cursor, err := s.journeys.Find(ctx, bson.M{"bot_id": botID})
	if err != nil {
		return nil, fmt.Errorf("list journeys: %w", err)
	}
	var result []models.Journey
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode journeys: %w", err)
	}
	return result, nil
}

func (s *MongoStore) DeleteJourney(ctx context.Context, journeyID string) error {
	if _, err := s.journeys.DeleteOne(ctx, bson.M{"journey_id": journeyID}); err != nil {
		return fmt.Errorf("delete journey %s: %w", journeyID, err)
	}
	return nil
}

func (s *MongoStore) MarkJourneyDrift(ctx context.Context, journeyID string) error {
	res, err := s.journeys.UpdateOne(ctx,
		bson.M{"journey_id": journeyID},
		bson.M{"$set": bson.M{"drift": true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mark journey drift %s: %w", journeyID, err)
	}
	if res.MatchedCount == 0 {
		return &ErrNotFound{Entity: "journey", Key: journeyID}
	}
	return nil
}

// Compile-time check that MongoStore implements Store.
var _ Store = (*MongoStore)(nil)
