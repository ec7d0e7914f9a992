// Package store — in-memory Store implementation.
// Used as a fallback when MongoDB is not configured (local dev, tests).
// Supports file-based snapshot persistence so data survives restarts.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/botforge/botforge/pkg/models"
	"github.com/rs/zerolog/log"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Bots       map[string]*models.Bot       `json:"bots"`
	Guidelines map[string]*models.Guideline `json:"guidelines"`
	Journeys   map[string]*models.Journey   `json:"journeys"`
}

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu         sync.RWMutex
	bots       map[string]*models.Bot       // key: bot_id
	guidelines map[string]*models.Guideline // key: guideline_id
	journeys   map[string]*models.Journey   // key: journey_id

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals the save goroutine to stop
}

// NewMemoryStore creates a new in-memory store.
// If BOTFORGE_DATA_DIR is set, data is persisted to a JSON file in that
// directory. Otherwise defaults to ~/.botforge/data.json.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		bots:       make(map[string]*models.Bot),
		guidelines: make(map[string]*models.Guideline),
		journeys:   make(map[string]*models.Journey),
		saveCh:     make(chan struct{}, 1),
		doneCh:     make(chan struct{}),
	}

	dataDir := os.Getenv("BOTFORGE_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			dataDir = filepath.Join(home, ".botforge")
		}
	}
	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "data.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Memory store configured")
	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop runs in a goroutine, debouncing save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond) // debounce
			m.saveSnapshot()
		}
	}
}

// saveSnapshot persists all data to disk as JSON.
func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{
		Bots:       m.bots,
		Guidelines: m.guidelines,
		Journeys:   m.journeys,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}

	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

// loadSnapshot reads data from disk on startup.
func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Bots != nil {
		m.bots = snap.Bots
	}
	if snap.Guidelines != nil {
		m.guidelines = snap.Guidelines
	}
	if snap.Journeys != nil {
		m.journeys = snap.Journeys
	}

	log.Info().
		Int("bots", len(m.bots)).
		Int("guidelines", len(m.guidelines)).
		Int("journeys", len(m.journeys)).
		Str("path", m.snapshotPath).
		Msg("Snapshot loaded")
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops the save goroutine and forces a final snapshot write.
// Safe to call multiple times (second call is a no-op).
func (m *MemoryStore) Close(_ context.Context) error {
	select {
	case <-m.doneCh:
		return nil
	default:
		close(m.doneCh)
	}

	if m.snapshotPath != "" {
		m.saveSnapshot()
	}

	log.Info().Msg("Memory store closed")
	return nil
}

// ── Bot Store ───────────────────────────────────────────────

func (m *MemoryStore) UpsertBot(_ context.Context, bot *models.Bot) error {
	m.mu.Lock()
	if bot.IdempotencyKey != "" {
		for id, existing := range m.bots {
			if id != bot.BotID && existing.IdempotencyKey == bot.IdempotencyKey {
				m.mu.Unlock()
				return &ErrDuplicateKey{Key: bot.IdempotencyKey, ExistingBotID: id}
			}
		}
	}
	copy := *bot
	copy.UpdatedAt = time.Now().UTC()
	// created_at is insert-only: an update never rewrites it.
	if existing, ok := m.bots[bot.BotID]; ok && !existing.CreatedAt.IsZero() {
		copy.CreatedAt = existing.CreatedAt
	} else if copy.CreatedAt.IsZero() {
		copy.CreatedAt = copy.UpdatedAt
	}
	m.bots[bot.BotID] = &copy
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetBot(_ context.Context, botID string) (*models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bots[botID]
	if !ok {
		return nil, &ErrNotFound{Entity: "bot", Key: botID}
	}
	copy := *b
	return &copy, nil
}

func (m *MemoryStore) FindBotByIdempotencyKey(_ context.Context, key string) (*models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bots {
		if b.IdempotencyKey == key {
			copy := *b
			return &copy, nil
		}
	}
	return nil, &ErrNotFound{Entity: "bot", Key: key}
}

func (m *MemoryStore) ListBots(_ context.Context) ([]models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.Bot, 0, len(m.bots))
	for _, b := range m.bots {
		result = append(result, *b)
	}
	return result, nil
}

func (m *MemoryStore) ListBotsByStatus(_ context.Context, status models.BotStatus) ([]models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Bot
	for _, b := range m.bots {
		if b.State.Status == status {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (m *MemoryStore) UpdateBotState(_ context.Context, botID string, state models.BotState) error {
	m.mu.Lock()
	b, ok := m.bots[botID]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "bot", Key: botID}
	}
	b.State = state
	b.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) RemapBotID(_ context.Context, oldID, newID string) error {
	m.mu.Lock()
	b, ok := m.bots[oldID]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "bot", Key: oldID}
	}
	delete(m.bots, oldID)
	b.BotID = newID
	b.UpdatedAt = time.Now().UTC()
	m.bots[newID] = b

	for _, g := range m.guidelines {
		if g.BotID == oldID {
			g.BotID = newID
		}
	}
	for _, j := range m.journeys {
		if j.BotID == oldID {
			j.BotID = newID
		}
	}
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteBot(_ context.Context, botID string) error {
	m.mu.Lock()
	if _, ok := m.bots[botID]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "bot", Key: botID}
	}
	delete(m.bots, botID)
	for id, g := range m.guidelines {
		if g.BotID == botID {
			delete(m.guidelines, id)
		}
	}
	for id, j := range m.journeys {
		if j.BotID == botID {
			delete(m.journeys, id)
		}
	}
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Guideline Store ─────────────────────────────────────────

func (m *MemoryStore) UpsertGuideline(_ context.Context, guideline *models.Guideline) error {
	m.mu.Lock()
	copy := *guideline
	copy.UpdatedAt = time.Now().UTC()
	if existing, ok := m.guidelines[guideline.GuidelineID]; ok && !existing.CreatedAt.IsZero() {
		copy.CreatedAt = existing.CreatedAt
	} else if copy.CreatedAt.IsZero() {
		copy.CreatedAt = copy.UpdatedAt
	}
	m.guidelines[guideline.GuidelineID] = &copy
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetGuideline(_ context.Context, guidelineID string) (*models.Guideline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.guidelines[guidelineID]
	if !ok {
		return nil, &ErrNotFound{Entity: "guideline", Key: guidelineID}
	}
	copy := *g
	return &copy, nil
}

func (m *MemoryStore) ListGuidelines(_ context.Context, botID string) ([]models.Guideline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Guideline
	for _, g := range m.guidelines {
		if g.BotID == botID {
			result = append(result, *g)
		}
	}
	return result, nil
}

func (m *MemoryStore) DeleteGuideline(_ context.Context, guidelineID string) error {
	m.mu.Lock()
	delete(m.guidelines, guidelineID)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) MarkGuidelineDrift(_ context.Context, guidelineID string) error {
	m.mu.Lock()
	g, ok := m.guidelines[guidelineID]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "guideline", Key: guidelineID}
	}
	g.Drift = true
	g.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Journey Store ───────────────────────────────────────────

func (m *MemoryStore) UpsertJourney(_ context.Context, journey *models.Journey) error {
	m.mu.Lock()
	copy := *journey
	copy.UpdatedAt = time.Now().UTC()
	if existing, ok := m.journeys[journey.JourneyID]; ok && !existing.CreatedAt.IsZero() {
		copy.CreatedAt = existing.CreatedAt
	} else if copy.CreatedAt.IsZero() {
		copy.CreatedAt = copy.UpdatedAt
	}
	m.journeys[journey.JourneyID] = &copy
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetJourney(_ context.Context, journeyID string) (*models.Journey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.journeys[journeyID]
	if !ok {
		return nil, &ErrNotFound{Entity: "journey", Key: journeyID}
	}
	copy := *j
	return &copy, nil
}

func (m *MemoryStore) ListJourneys(_ context.Context, botID string) ([]models.Journey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Journey
	for _, j := range m.journeys {
		if j.BotID == botID {
			result = append(result, *j)
		}
	}
	return result, nil
}

func (m *MemoryStore) DeleteJourney(_ context.Context, journeyID string) error {
	m.mu.Lock()
	delete(m.journeys, journeyID)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) MarkJourneyDrift(_ context.Context, journeyID string) error {
	m.mu.Lock()
	j, ok := m.journeys[journeyID]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "journey", Key: journeyID}
	}
	j.Drift = true
	j.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
