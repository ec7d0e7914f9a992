package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/botforge/botforge/internal/store"
	"github.com/botforge/botforge/pkg/models"
)

func newTestStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	t.Setenv("BOTFORGE_DATA_DIR", t.TempDir())
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func testBot(id, key string) *models.Bot {
	return &models.Bot{
		BotID:          id,
		Name:           "support-bot",
		Description:    "Purpose: help customers",
		IdempotencyKey: key,
		State:          models.StateCreated(),
	}
}

func TestBotCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertBot(ctx, testBot("bot-1", "key-1")); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}

	got, err := s.GetBot(ctx, "bot-1")
	if err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if got.Name != "support-bot" {
		t.Errorf("got name %q, want %q", got.Name, "support-bot")
	}
	if got.State.Status != models.StatusCreated {
		t.Errorf("got status %q, want %q", got.State.Status, models.StatusCreated)
	}

	bots, err := s.ListBots(ctx)
	if err != nil {
		t.Fatalf("ListBots: %v", err)
	}
	if len(bots) != 1 {
		t.Fatalf("got %d bots, want 1", len(bots))
	}

	if err := s.DeleteBot(ctx, "bot-1"); err != nil {
		t.Fatalf("DeleteBot: %v", err)
	}
	if _, err := s.GetBot(ctx, "bot-1"); err == nil {
		t.Error("expected not-found after delete")
	}
}

func TestUpsertBotPreservesCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertBot(ctx, testBot("bot-1", "key-1")); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}
	first, err := s.GetBot(ctx, "bot-1")
	if err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if first.CreatedAt.IsZero() {
		t.Fatal("created_at not stamped on insert")
	}

	// A later upsert with a zero CreatedAt must not rewrite it.
	update := testBot("bot-1", "key-1")
	update.Name = "renamed-bot"
	if err := s.UpsertBot(ctx, update); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}

	got, err := s.GetBot(ctx, "bot-1")
	if err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if got.Name != "renamed-bot" {
		t.Errorf("got name %q, want %q", got.Name, "renamed-bot")
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on update: %v -> %v", first.CreatedAt, got.CreatedAt)
	}
	if got.UpdatedAt.Before(first.UpdatedAt) {
		t.Errorf("updated_at went backwards: %v -> %v", first.UpdatedAt, got.UpdatedAt)
	}
}

func TestGetBotNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBot(context.Background(), "missing")
	var nf *store.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("got %v, want *ErrNotFound", err)
	}
	if nf.Entity != "bot" {
		t.Errorf("got entity %q, want %q", nf.Entity, "bot")
	}
}

func TestDuplicateIdempotencyKeyRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertBot(ctx, testBot("bot-1", "key-1")); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	err := s.UpsertBot(ctx, testBot("bot-2", "key-1"))
	var dup *store.ErrDuplicateKey
	if !errors.As(err, &dup) {
		t.Fatalf("got %v, want *ErrDuplicateKey", err)
	}
	if dup.ExistingBotID != "bot-1" {
		t.Errorf("got existing bot %q, want %q", dup.ExistingBotID, "bot-1")
	}

	// Re-upserting the same bot under the same key is fine.
	if err := s.UpsertBot(ctx, testBot("bot-1", "key-1")); err != nil {
		t.Errorf("same-bot upsert rejected: %v", err)
	}
}

func TestFindBotByIdempotencyKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertBot(ctx, testBot("bot-1", "key-1")); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}

	got, err := s.FindBotByIdempotencyKey(ctx, "key-1")
	if err != nil {
		t.Fatalf("FindBotByIdempotencyKey: %v", err)
	}
	if got.BotID != "bot-1" {
		t.Errorf("got bot %q, want %q", got.BotID, "bot-1")
	}

	if _, err := s.FindBotByIdempotencyKey(ctx, "key-other"); err == nil {
		t.Error("expected not-found for unknown key")
	}
}

func TestListBotsByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := testBot("bot-1", "key-1")
	partial := testBot("bot-2", "key-2")
	partial.State = models.StatePartiallyCreated("persistence failed")
	if err := s.UpsertBot(ctx, created); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}
	if err := s.UpsertBot(ctx, partial); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}

	bots, err := s.ListBotsByStatus(ctx, models.StatusPartiallyCreated)
	if err != nil {
		t.Fatalf("ListBotsByStatus: %v", err)
	}
	if len(bots) != 1 || bots[0].BotID != "bot-2" {
		t.Fatalf("got %v, want just bot-2", bots)
	}
}

func TestUpdateBotState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	partial := testBot("bot-1", "key-1")
	partial.State = models.StatePartiallyCreated("mongo down")
	if err := s.UpsertBot(ctx, partial); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}

	if err := s.UpdateBotState(ctx, "bot-1", models.StateCreated()); err != nil {
		t.Fatalf("UpdateBotState: %v", err)
	}

	got, err := s.GetBot(ctx, "bot-1")
	if err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if got.State.Status != models.StatusCreated {
		t.Errorf("got status %q, want %q", got.State.Status, models.StatusCreated)
	}
	if got.State.LastError != "" {
		t.Errorf("last error not cleared: %q", got.State.LastError)
	}

	if err := s.UpdateBotState(ctx, "missing", models.StateCreated()); err == nil {
		t.Error("expected not-found for unknown bot")
	}
}

func TestRemapBotIDCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertBot(ctx, testBot("old-id", "key-1")); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}
	if err := s.UpsertGuideline(ctx, &models.Guideline{GuidelineID: "g-1", BotID: "old-id", Condition: "asks for refund"}); err != nil {
		t.Fatalf("UpsertGuideline: %v", err)
	}
	if err := s.UpsertJourney(ctx, &models.Journey{JourneyID: "j-1", BotID: "old-id", Title: "Onboarding"}); err != nil {
		t.Fatalf("UpsertJourney: %v", err)
	}

	if err := s.RemapBotID(ctx, "old-id", "new-id"); err != nil {
		t.Fatalf("RemapBotID: %v", err)
	}

	if _, err := s.GetBot(ctx, "old-id"); err == nil {
		t.Error("old bot id still resolves")
	}
	bot, err := s.GetBot(ctx, "new-id")
	if err != nil {
		t.Fatalf("GetBot new-id: %v", err)
	}
	if bot.BotID != "new-id" {
		t.Errorf("got bot id %q, want %q", bot.BotID, "new-id")
	}

	gs, err := s.ListGuidelines(ctx, "new-id")
	if err != nil || len(gs) != 1 {
		t.Fatalf("guidelines under new id: %v, err %v", gs, err)
	}
	js, err := s.ListJourneys(ctx, "new-id")
	if err != nil || len(js) != 1 {
		t.Fatalf("journeys under new id: %v, err %v", js, err)
	}
}

func TestDeleteBotCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertBot(ctx, testBot("bot-1", "key-1")); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}
	if err := s.UpsertBot(ctx, testBot("bot-2", "key-2")); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}
	guidelines := []*models.Guideline{
		{GuidelineID: "g-1", BotID: "bot-1"},
		{GuidelineID: "g-2", BotID: "bot-2"},
	}
	for _, g := range guidelines {
		if err := s.UpsertGuideline(ctx, g); err != nil {
			t.Fatalf("UpsertGuideline: %v", err)
		}
	}
	if err := s.UpsertJourney(ctx, &models.Journey{JourneyID: "j-1", BotID: "bot-1"}); err != nil {
		t.Fatalf("UpsertJourney: %v", err)
	}

	if err := s.DeleteBot(ctx, "bot-1"); err != nil {
		t.Fatalf("DeleteBot: %v", err)
	}

	if gs, _ := s.ListGuidelines(ctx, "bot-1"); len(gs) != 0 {
		t.Errorf("bot-1 guidelines survived delete: %v", gs)
	}
	if js, _ := s.ListJourneys(ctx, "bot-1"); len(js) != 0 {
		t.Errorf("bot-1 journeys survived delete: %v", js)
	}
	// Siblings untouched.
	if gs, _ := s.ListGuidelines(ctx, "bot-2"); len(gs) != 1 {
		t.Errorf("bot-2 guidelines affected: %v", gs)
	}
}

func TestMarkDrift(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertGuideline(ctx, &models.Guideline{GuidelineID: "g-1", BotID: "bot-1"}); err != nil {
		t.Fatalf("UpsertGuideline: %v", err)
	}
	if err := s.MarkGuidelineDrift(ctx, "g-1"); err != nil {
		t.Fatalf("MarkGuidelineDrift: %v", err)
	}
	g, err := s.GetGuideline(ctx, "g-1")
	if err != nil {
		t.Fatalf("GetGuideline: %v", err)
	}
	if !g.Drift {
		t.Error("guideline drift flag not set")
	}

	if err := s.MarkJourneyDrift(ctx, "missing"); err == nil {
		t.Error("expected not-found for unknown journey")
	}
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BOTFORGE_DATA_DIR", dir)
	ctx := context.Background()

	s := store.NewMemoryStore()
	if err := s.UpsertBot(ctx, testBot("bot-1", "key-1")); err != nil {
		t.Fatalf("UpsertBot: %v", err)
	}
	if err := s.UpsertGuideline(ctx, &models.Guideline{GuidelineID: "g-1", BotID: "bot-1"}); err != nil {
		t.Fatalf("UpsertGuideline: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := store.NewMemoryStore()
	defer reopened.Close(ctx)

	bot, err := reopened.GetBot(ctx, "bot-1")
	if err != nil {
		t.Fatalf("GetBot after reopen: %v", err)
	}
	if bot.IdempotencyKey != "key-1" {
		t.Errorf("got key %q, want %q", bot.IdempotencyKey, "key-1")
	}
	if gs, _ := reopened.ListGuidelines(ctx, "bot-1"); len(gs) != 1 {
		t.Errorf("guidelines not restored: %v", gs)
	}
}
