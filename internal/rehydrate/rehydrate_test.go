package rehydrate_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/botforge/botforge/internal/config"
	"github.com/botforge/botforge/internal/rehydrate"
	"github.com/botforge/botforge/internal/remote"
	"github.com/botforge/botforge/internal/store"
	"github.com/botforge/botforge/pkg/models"
)

type fakeRemote struct {
	liveAgents     []remote.Agent
	createdAgents  []remote.AgentPayload
	guidelineCalls int
	journeyCalls   int
	nextAgentID    int

	failAgentName string // agents with this name fail to create
}

func (f *fakeRemote) ListAgents(context.Context) ([]remote.Agent, error) {
	return f.liveAgents, nil
}

func (f *fakeRemote) CreateAgent(_ context.Context, p remote.AgentPayload) (*remote.Agent, error) {
	if p.Name == f.failAgentName {
		return nil, &remote.Error{Message: "API returned 500", StatusCode: 500}
	}
	f.createdAgents = append(f.createdAgents, p)
	f.nextAgentID++
	return &remote.Agent{ID: fmt.Sprintf("fresh-%d", f.nextAgentID), Name: p.Name}, nil
}

func (f *fakeRemote) CreateGuideline(_ context.Context, p remote.GuidelinePayload) (*remote.Guideline, error) {
	f.guidelineCalls++
	return &remote.Guideline{ID: fmt.Sprintf("fresh-guideline-%d", f.guidelineCalls), Condition: p.Condition}, nil
}

func (f *fakeRemote) CreateJourney(_ context.Context, p remote.JourneyPayload) (*remote.Journey, error) {
	f.journeyCalls++
	return &remote.Journey{ID: fmt.Sprintf("fresh-journey-%d", f.journeyCalls), Title: p.Title}, nil
}

func newTestStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	t.Setenv("BOTFORGE_DATA_DIR", t.TempDir())
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func newRehydrator(api rehydrate.RemoteAPI, st store.Store) *rehydrate.Rehydrator {
	cfg := &config.Config{
		SystemAgentName: "Otto",
		Remote:          config.RemoteConfig{CompositionEncoding: models.EncodingSuffix},
	}
	return rehydrate.New(api, st, cfg)
}

func seedBot(t *testing.T, s store.Store, id, name string) {
	t.Helper()
	ctx := context.Background()
	bot := &models.Bot{
		BotID:               id,
		Name:                name,
		Description:         "Purpose: help customers",
		CompositionMode:     "canned_composited",
		MaxEngineIterations: 3,
		IdempotencyKey:      name + ":abc",
		State:               models.StateCreated(),
	}
	if err := s.UpsertBot(ctx, bot); err != nil {
		t.Fatalf("seed bot: %v", err)
	}
	if err := s.UpsertGuideline(ctx, &models.Guideline{
		GuidelineID: id + "-g1", BotID: id, Condition: "asks for refund", Criticality: "high",
	}); err != nil {
		t.Fatalf("seed guideline: %v", err)
	}
	if err := s.UpsertJourney(ctx, &models.Journey{
		JourneyID: id + "-j1", BotID: id, Title: "Onboarding", Conditions: []string{"first message"},
	}); err != nil {
		t.Fatalf("seed journey: %v", err)
	}
}

func TestRunRestoresBotsAndChildren(t *testing.T) {
	s := newTestStore(t)
	seedBot(t, s, "stale-1", "support-bot")
	api := &fakeRemote{}
	ctx := context.Background()

	stats, err := newRehydrator(api, s).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.BotsRestored != 1 || stats.GuidelinesRestored != 1 || stats.JourneysRestored != 1 {
		t.Fatalf("got stats %+v, want 1/1/1", stats)
	}
	if stats.IDMapping["stale-1"] != "fresh-1" {
		t.Errorf("id mapping = %v", stats.IDMapping)
	}

	// Mirror moved under the new remote ID.
	if _, err := s.GetBot(ctx, "stale-1"); err == nil {
		t.Error("stale bot id still resolves")
	}
	bot, err := s.GetBot(ctx, "fresh-1")
	if err != nil {
		t.Fatalf("GetBot fresh-1: %v", err)
	}
	if bot.Name != "support-bot" {
		t.Errorf("got name %q", bot.Name)
	}
	gs, _ := s.ListGuidelines(ctx, "fresh-1")
	if len(gs) != 1 || gs[0].GuidelineID != "fresh-guideline-1" {
		t.Errorf("guidelines not remirrored: %v", gs)
	}
}

func TestRunReencodesCompositionMode(t *testing.T) {
	s := newTestStore(t)
	seedBot(t, s, "stale-1", "support-bot") // persisted as canned_composited
	api := &fakeRemote{}

	if _, err := newRehydrator(api, s).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(api.createdAgents) != 1 {
		t.Fatalf("got %d created agents, want 1", len(api.createdAgents))
	}
	if got := api.createdAgents[0].CompositionMode; got != "composited_canned" {
		t.Errorf("got composition mode %q, want %q", got, "composited_canned")
	}
}

func TestRunSkipsLiveAndSystemAgents(t *testing.T) {
	s := newTestStore(t)
	seedBot(t, s, "stale-1", "support-bot")
	seedBot(t, s, "stale-2", "sales-bot")
	seedBot(t, s, "stale-3", "Otto")
	api := &fakeRemote{liveAgents: []remote.Agent{{ID: "live-1", Name: "sales-bot"}}}

	stats, err := newRehydrator(api, s).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.BotsRestored != 1 {
		t.Errorf("got %d bots restored, want 1", stats.BotsRestored)
	}
	if len(api.createdAgents) != 1 || api.createdAgents[0].Name != "support-bot" {
		t.Errorf("created agents: %v", api.createdAgents)
	}
}

func TestRunCollectsPerBotErrors(t *testing.T) {
	s := newTestStore(t)
	seedBot(t, s, "stale-1", "broken-bot")
	seedBot(t, s, "stale-2", "support-bot")
	api := &fakeRemote{failAgentName: "broken-bot"}

	stats, err := newRehydrator(api, s).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.BotsRestored != 1 {
		t.Errorf("got %d bots restored, want 1", stats.BotsRestored)
	}
	if len(stats.Errors) != 1 {
		t.Fatalf("got errors %v, want 1", stats.Errors)
	}
}

func TestRunEmptyStore(t *testing.T) {
	s := newTestStore(t)
	stats, err := newRehydrator(&fakeRemote{}, s).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.BotsRestored != 0 || len(stats.Errors) != 0 {
		t.Errorf("got %+v, want empty stats", stats)
	}
}
