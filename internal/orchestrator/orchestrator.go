// Package orchestrator implements the bot creation and management flows:
// validation, idempotent agent creation against the remote service,
// per-item guideline and journey creation, and mirroring into the
// document store with bounded retries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/botforge/botforge/internal/config"
	"github.com/botforge/botforge/internal/remote"
	"github.com/botforge/botforge/internal/store"
	"github.com/botforge/botforge/internal/validate"
	"github.com/botforge/botforge/pkg/models"
	"github.com/rs/zerolog/log"
)

// RemoteAPI is the slice of the agent service client the orchestrator uses.
// Tests substitute a fake; production wires *remote.Client.
type RemoteAPI interface {
	CreateAgent(ctx context.Context, payload remote.AgentPayload) (*remote.Agent, error)
	GetAgent(ctx context.Context, id string) (*remote.Agent, error)
	UpdateAgent(ctx context.Context, id string, updates map[string]any) error
	DeleteAgent(ctx context.Context, id string) error

	CreateGuideline(ctx context.Context, payload remote.GuidelinePayload) (*remote.Guideline, error)
	GetGuideline(ctx context.Context, id string) (*remote.Guideline, error)
	ListGuidelines(ctx context.Context, tag string) ([]remote.Guideline, error)
	UpdateGuideline(ctx context.Context, id string, updates map[string]any) error
	DeleteGuideline(ctx context.Context, id string) error

	CreateJourney(ctx context.Context, payload remote.JourneyPayload) (*remote.Journey, error)
	GetJourney(ctx context.Context, id string) (*remote.Journey, error)
	ListJourneys(ctx context.Context, tag string) ([]remote.Journey, error)
	UpdateJourney(ctx context.Context, id string, updates map[string]any) error
	DeleteJourney(ctx context.Context, id string) error

	CreateSession(ctx context.Context, agentID, customerID string) (*remote.Session, error)
	GetSession(ctx context.Context, id string) (*remote.Session, error)
	DeleteSession(ctx context.Context, id string) error
	GetEvents(ctx context.Context, sessionID string) ([]remote.Event, error)
	SendEvent(ctx context.Context, sessionID string, event remote.Event) error
}

// Orchestrator coordinates the remote agent service and the local mirror.
type Orchestrator struct {
	remote          RemoteAPI
	store           store.Store
	encoding        models.RemoteEncoding
	retry           config.RetryConfig
	systemAgentName string
}

// New wires an orchestrator from its dependencies.
func New(api RemoteAPI, st store.Store, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		remote:          api,
		store:           st,
		encoding:        cfg.Remote.CompositionEncoding,
		retry:           cfg.Retry,
		systemAgentName: cfg.SystemAgentName,
	}
}

// ── Creation flow ───────────────────────────────────────────

// CreateBot runs the full creation flow for a spec. It never returns an
// error: every outcome, including total failure, is expressed in the
// CreationResult so callers get one uniform shape.
//
// The flow is ordered so that the user-visible resource comes first: once
// the remote agent exists, child or persistence failures degrade the result
// (CREATED with errors, or PARTIALLY_CREATED) instead of failing it.
func (o *Orchestrator) CreateBot(ctx context.Context, spec *models.BotSpec) *models.CreationResult {
	result := &models.CreationResult{
		Status:    models.StatusPending,
		BotName:   spec.Name,
		Errors:    []models.OrchestratorError{},
		CreatedAt: time.Now().UTC(),
	}

	if errs := validate.Spec(spec); len(errs) > 0 {
		result.Status = models.StatusFailed
		result.Errors = append(result.Errors, errs...)
		return result
	}

	key := IdempotencyKey(spec)
	result.IdempotencyKey = key

	if existing, err := o.store.FindBotByIdempotencyKey(ctx, key); err == nil {
		return o.conflictResult(result, existing.BotID, key)
	}

	maxIter := spec.MaxEngineIterations
	if maxIter == 0 {
		maxIter = models.DefaultMaxEngineIterations
	}
	compositionMode := spec.CompositionMode.Remote(o.encoding)

	agent, err := o.remote.CreateAgent(ctx, remote.AgentPayload{
		Name:                spec.Name,
		Description:         BuildDescription(spec),
		CompositionMode:     compositionMode,
		MaxEngineIterations: maxIter,
	})
	if err != nil {
		re := remote.AsError(err)
		log.Error().Str("bot", spec.Name).Str("error", re.Message).Msg("Agent creation failed")
		result.Status = models.StatusFailed
		result.Errors = append(result.Errors, models.OrchestratorError{
			Kind:        models.ErrorAPIFailure,
			Message:     "agent creation failed: " + re.Message,
			Details:     map[string]any{"detail": re.Details, "status_code": re.StatusCode},
			Recoverable: true,
		})
		return result
	}

	result.BotID = agent.ID
	log.Info().Str("bot_id", agent.ID).Str("name", spec.Name).Msg("Agent created")

	guidelines := o.createGuidelines(ctx, agent.ID, spec, result)
	journeys := o.createJourneys(ctx, agent.ID, spec, result)

	bot := &models.Bot{
		BotID:               agent.ID,
		Name:                spec.Name,
		Description:         agent.Description,
		CompositionMode:     compositionMode,
		MaxEngineIterations: maxIter,
		IdempotencyKey:      key,
		State:               models.StateCreated(),
		SourceSpec:          spec,
	}

	persisted, perr := o.persistWithRetry(ctx, bot, guidelines, journeys)
	result.Persisted = persisted
	if perr != nil {
		var dup *store.ErrDuplicateKey
		if errors.As(perr, &dup) {
			// A concurrent request won the key. Roll nothing back: the
			// remote agent this call created stays, but the caller is told
			// which bot holds the identity.
			return o.conflictResult(result, dup.ExistingBotID, key)
		}
		o.markPartiallyCreated(ctx, bot, perr)
		result.Status = models.StatusPartiallyCreated
		result.Success = true
		result.Errors = append(result.Errors, models.OrchestratorError{
			Kind:        models.ErrorPersistenceFailure,
			Message:     fmt.Sprintf("persistence failed after %d attempts: %v", o.retry.MaxAttempts, perr),
			Recoverable: true,
		})
		return result
	}

	result.Status = models.StatusCreated
	result.Success = true
	return result
}

func (o *Orchestrator) conflictResult(result *models.CreationResult, existingID, key string) *models.CreationResult {
	result.Success = true
	result.Status = models.StatusCreated
	result.BotID = existingID
	result.Persisted = true
	result.Errors = append(result.Errors, models.OrchestratorError{
		Kind:        models.ErrorIdempotencyConflict,
		Message:     fmt.Sprintf("bot with identical specification already exists: %s", existingID),
		Details:     map[string]any{"idempotency_key": key},
		Recoverable: false,
	})
	return result
}

// createGuidelines creates each guideline against the remote service.
// Failures are recorded per item and the loop continues; one bad guideline
// must not sink its siblings.
func (o *Orchestrator) createGuidelines(ctx context.Context, botID string, spec *models.BotSpec, result *models.CreationResult) []models.Guideline {
	tag := "agent:" + botID
	created := make([]models.Guideline, 0, len(spec.Guidelines))
	for i, gs := range spec.Guidelines {
		g, err := o.remote.CreateGuideline(ctx, remote.GuidelinePayload{
			Condition:   gs.Condition,
			Action:      gs.Action,
			Description: gs.Description,
			Criticality: gs.Criticality.Remote(),
			Tags:        []string{tag},
		})
		if err != nil {
			re := remote.AsError(err)
			log.Warn().Str("bot_id", botID).Int("index", i+1).Str("error", re.Message).Msg("Guideline creation failed")
			result.Errors = append(result.Errors, models.OrchestratorError{
				Kind:        models.ErrorAPIFailure,
				Message:     fmt.Sprintf("guideline %d creation failed: %s", i+1, re.Message),
				Details:     map[string]any{"condition": gs.Condition},
				Recoverable: true,
			})
			continue
		}
		created = append(created, models.Guideline{
			GuidelineID: g.ID,
			BotID:       botID,
			Condition:   gs.Condition,
			Action:      gs.Action,
			Description: gs.Description,
			Criticality: gs.Criticality.Remote(),
		})
	}
	result.GuidelinesCreated = len(created)
	return created
}

func (o *Orchestrator) createJourneys(ctx context.Context, botID string, spec *models.BotSpec, result *models.CreationResult) []models.Journey {
	tag := "agent:" + botID
	created := make([]models.Journey, 0, len(spec.Journeys))
	for i, js := range spec.Journeys {
		j, err := o.remote.CreateJourney(ctx, remote.JourneyPayload{
			Title:       js.Title,
			Description: js.Description,
			Conditions:  js.Conditions,
			Tags:        []string{tag},
		})
		if err != nil {
			re := remote.AsError(err)
			log.Warn().Str("bot_id", botID).Int("index", i+1).Str("error", re.Message).Msg("Journey creation failed")
			result.Errors = append(result.Errors, models.OrchestratorError{
				Kind:        models.ErrorAPIFailure,
				Message:     fmt.Sprintf("journey %d creation failed: %s", i+1, re.Message),
				Details:     map[string]any{"title": js.Title},
				Recoverable: true,
			})
			continue
		}
		created = append(created, models.Journey{
			JourneyID:   j.ID,
			BotID:       botID,
			Title:       js.Title,
			Description: js.Description,
			Conditions:  js.Conditions,
		})
	}
	result.JourneysCreated = len(created)
	return created
}

// persistWithRetry mirrors the bot and its children, retrying the whole
// batch with a linearly growing delay. A duplicate-key rejection is final
// and returned immediately: retrying cannot win a lost race.
func (o *Orchestrator) persistWithRetry(ctx context.Context, bot *models.Bot, guidelines []models.Guideline, journeys []models.Journey) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= o.retry.MaxAttempts; attempt++ {
		lastErr = o.persist(ctx, bot, guidelines, journeys)
		if lastErr == nil {
			return true, nil
		}
		var dup *store.ErrDuplicateKey
		if errors.As(lastErr, &dup) {
			return false, lastErr
		}
		log.Warn().
			Str("bot_id", bot.BotID).
			Int("attempt", attempt).
			Int("max_attempts", o.retry.MaxAttempts).
			Err(lastErr).
			Msg("Persistence attempt failed")
		if attempt < o.retry.MaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * o.retry.BaseDelay):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
	}
	return false, lastErr
}

func (o *Orchestrator) persist(ctx context.Context, bot *models.Bot, guidelines []models.Guideline, journeys []models.Journey) error {
	if err := o.store.UpsertBot(ctx, bot); err != nil {
		return err
	}
	for i := range guidelines {
		if err := o.store.UpsertGuideline(ctx, &guidelines[i]); err != nil {
			return err
		}
	}
	for i := range journeys {
		if err := o.store.UpsertJourney(ctx, &journeys[i]); err != nil {
			return err
		}
	}
	return nil
}

// markPartiallyCreated records a minimal recovery marker once retries are
// exhausted. Children are deliberately left out: reconciliation re-reads
// them from the remote service, which stayed authoritative.
func (o *Orchestrator) markPartiallyCreated(ctx context.Context, bot *models.Bot, cause error) {
	marker := *bot
	marker.State = models.StatePartiallyCreated(cause.Error())
	if err := o.store.UpsertBot(ctx, &marker); err != nil {
		log.Error().Str("bot_id", bot.BotID).Err(err).Msg("Could not record partial-creation marker")
		return
	}
	log.Warn().Str("bot_id", bot.BotID).Msg("Bot marked PARTIALLY_CREATED")
}

// ── Bot reads & lifecycle ───────────────────────────────────

// ListBots returns the persisted bots, hiding the reserved system agent.
func (o *Orchestrator) ListBots(ctx context.Context) ([]models.Bot, error) {
	bots, err := o.store.ListBots(ctx)
	if err != nil {
		return nil, err
	}
	filtered := bots[:0]
	for _, b := range bots {
		if b.Name == o.systemAgentName {
			continue
		}
		filtered = append(filtered, b)
	}
	return filtered, nil
}

// GetBot returns a bot joined with its persisted guidelines and journeys.
func (o *Orchestrator) GetBot(ctx context.Context, botID string) (*models.BotDetail, error) {
	bot, err := o.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	guidelines, err := o.store.ListGuidelines(ctx, botID)
	if err != nil {
		return nil, err
	}
	journeys, err := o.store.ListJourneys(ctx, botID)
	if err != nil {
		return nil, err
	}
	return &models.BotDetail{Bot: *bot, Guidelines: guidelines, Journeys: journeys}, nil
}

// UpdateBot applies a partial update to the remote agent and mirrors the
// changed fields. Allowed keys are name, description, composition_mode, and
// max_engine_iterations; composition_mode is re-encoded for the wire. The
// returned bool reports whether the mirror write succeeded; the remote
// update is authoritative either way.
func (o *Orchestrator) UpdateBot(ctx context.Context, botID string, updates map[string]any) (*models.Bot, bool, error) {
	bot, err := o.store.GetBot(ctx, botID)
	if err != nil {
		return nil, false, err
	}

	wire := make(map[string]any, len(updates))
	for k, v := range updates {
		switch k {
		case "name", "description", "max_engine_iterations":
			wire[k] = v
		case "composition_mode":
			s, _ := v.(string)
			wire[k] = models.CompositionModeFromRemote(s).Remote(o.encoding)
		}
	}
	if len(wire) == 0 {
		return bot, true, nil
	}

	if err := o.remote.UpdateAgent(ctx, botID, wire); err != nil {
		return nil, false, remote.AsError(err)
	}

	if v, ok := wire["name"].(string); ok {
		bot.Name = v
	}
	if v, ok := wire["description"].(string); ok {
		bot.Description = v
	}
	if v, ok := wire["composition_mode"].(string); ok {
		bot.CompositionMode = v
	}
	switch v := updates["max_engine_iterations"].(type) {
	case float64:
		bot.MaxEngineIterations = int(v)
	case int:
		bot.MaxEngineIterations = v
	}

	if err := o.store.UpsertBot(ctx, bot); err != nil {
		log.Warn().Str("bot_id", botID).Err(err).Msg("Mirror update failed after remote update")
		return bot, false, nil
	}
	return bot, true, nil
}

// DeleteBot removes the remote agent, its remote children, and the local
// mirror. Remote child deletions are tolerant: an already-gone child is
// not a failure.
func (o *Orchestrator) DeleteBot(ctx context.Context, botID string) error {
	guidelines, _ := o.store.ListGuidelines(ctx, botID)
	journeys, _ := o.store.ListJourneys(ctx, botID)

	for _, g := range guidelines {
		if err := o.remote.DeleteGuideline(ctx, g.GuidelineID); err != nil {
			log.Warn().Str("guideline_id", g.GuidelineID).Err(err).Msg("Remote guideline delete failed")
		}
	}
	for _, j := range journeys {
		if err := o.remote.DeleteJourney(ctx, j.JourneyID); err != nil {
			log.Warn().Str("journey_id", j.JourneyID).Err(err).Msg("Remote journey delete failed")
		}
	}

	if err := o.remote.DeleteAgent(ctx, botID); err != nil {
		re := remote.AsError(err)
		if re.StatusCode != 404 {
			return re
		}
	}
	err := o.store.DeleteBot(ctx, botID)
	var nf *store.ErrNotFound
	if errors.As(err, &nf) {
		return nil
	}
	return err
}

// ── Guideline management ────────────────────────────────────

// AddGuideline creates a guideline on the remote service and mirrors it.
// mirrored reports whether the local write succeeded; on mirror failure the
// guideline still exists remotely and the error is logged, not returned.
func (o *Orchestrator) AddGuideline(ctx context.Context, botID string, spec models.GuidelineSpec) (*models.Guideline, bool, error) {
	if _, err := o.store.GetBot(ctx, botID); err != nil {
		return nil, false, err
	}
	g, err := o.remote.CreateGuideline(ctx, remote.GuidelinePayload{
		Condition:   spec.Condition,
		Action:      spec.Action,
		Description: spec.Description,
		Criticality: spec.Criticality.Remote(),
		Tags:        []string{"agent:" + botID},
	})
	if err != nil {
		return nil, false, remote.AsError(err)
	}

	guideline := &models.Guideline{
		GuidelineID: g.ID,
		BotID:       botID,
		Condition:   spec.Condition,
		Action:      spec.Action,
		Description: spec.Description,
		Criticality: spec.Criticality.Remote(),
	}
	if err := o.store.UpsertGuideline(ctx, guideline); err != nil {
		log.Warn().Str("guideline_id", g.ID).Err(err).Msg("Guideline mirror write failed")
		return guideline, false, nil
	}
	return guideline, true, nil
}

// UpdateGuideline patches the remote guideline and mirrors the change.
// A failed mirror write flags the record as drifted.
func (o *Orchestrator) UpdateGuideline(ctx context.Context, guidelineID string, updates map[string]any) (bool, error) {
	existing, err := o.store.GetGuideline(ctx, guidelineID)
	if err != nil {
		return false, err
	}

	wire := make(map[string]any, len(updates))
	for k, v := range updates {
		switch k {
		case "condition", "action", "description":
			wire[k] = v
		case "criticality":
			s, _ := v.(string)
			wire[k] = models.CriticalityFromRemote(s).Remote()
		}
	}
	if err := o.remote.UpdateGuideline(ctx, guidelineID, wire); err != nil {
		return false, remote.AsError(err)
	}

	if v, ok := wire["condition"].(string); ok {
		existing.Condition = v
	}
	if v, ok := wire["action"].(string); ok {
		existing.Action = v
	}
	if v, ok := wire["description"].(string); ok {
		existing.Description = v
	}
	if v, ok := wire["criticality"].(string); ok {
		existing.Criticality = v
	}
	existing.Drift = false

	if err := o.store.UpsertGuideline(ctx, existing); err != nil {
		log.Warn().Str("guideline_id", guidelineID).Err(err).Msg("Guideline mirror update failed, marking drift")
		if derr := o.store.MarkGuidelineDrift(ctx, guidelineID); derr != nil {
			log.Error().Str("guideline_id", guidelineID).Err(derr).Msg("Could not flag guideline drift")
		}
		return false, nil
	}
	return true, nil
}

// ListRemoteGuidelines lists guidelines straight from the remote service,
// optionally tag-filtered. The remote is authoritative; the mirror may lag
// behind on drifted records.
func (o *Orchestrator) ListRemoteGuidelines(ctx context.Context, tag string) ([]remote.Guideline, error) {
	guidelines, err := o.remote.ListGuidelines(ctx, tag)
	if err != nil {
		return nil, remote.AsError(err)
	}
	return guidelines, nil
}

// GetRemoteGuideline reads one guideline from the remote service.
func (o *Orchestrator) GetRemoteGuideline(ctx context.Context, guidelineID string) (*remote.Guideline, error) {
	g, err := o.remote.GetGuideline(ctx, guidelineID)
	if err != nil {
		return nil, remote.AsError(err)
	}
	return g, nil
}

// DeleteGuideline removes the guideline remotely and from the mirror.
func (o *Orchestrator) DeleteGuideline(ctx context.Context, guidelineID string) error {
	if err := o.remote.DeleteGuideline(ctx, guidelineID); err != nil {
		re := remote.AsError(err)
		if re.StatusCode != 404 {
			return re
		}
	}
	return o.store.DeleteGuideline(ctx, guidelineID)
}

// ── Journey management ──────────────────────────────────────

// AddJourney creates a journey on the remote service and mirrors it.
func (o *Orchestrator) AddJourney(ctx context.Context, botID string, spec models.JourneySpec) (*models.Journey, bool, error) {
	if _, err := o.store.GetBot(ctx, botID); err != nil {
		return nil, false, err
	}
	j, err := o.remote.CreateJourney(ctx, remote.JourneyPayload{
		Title:       spec.Title,
		Description: spec.Description,
		Conditions:  spec.Conditions,
		Tags:        []string{"agent:" + botID},
	})
	if err != nil {
		return nil, false, remote.AsError(err)
	}

	journey := &models.Journey{
		JourneyID:   j.ID,
		BotID:       botID,
		Title:       spec.Title,
		Description: spec.Description,
		Conditions:  spec.Conditions,
	}
	if err := o.store.UpsertJourney(ctx, journey); err != nil {
		log.Warn().Str("journey_id", j.ID).Err(err).Msg("Journey mirror write failed")
		return journey, false, nil
	}
	return journey, true, nil
}

// UpdateJourney patches the remote journey and mirrors the change.
func (o *Orchestrator) UpdateJourney(ctx context.Context, journeyID string, updates map[string]any) (bool, error) {
	existing, err := o.store.GetJourney(ctx, journeyID)
	if err != nil {
		return false, err
	}

	wire := make(map[string]any, len(updates))
	for k, v := range updates {
		switch k {
		case "title", "description", "conditions":
			wire[k] = v
		}
	}
	if err := o.remote.UpdateJourney(ctx, journeyID, wire); err != nil {
		return false, remote.AsError(err)
	}

	if v, ok := wire["title"].(string); ok {
		existing.Title = v
	}
	if v, ok := wire["description"].(string); ok {
		existing.Description = v
	}
	if v, ok := wire["conditions"].([]any); ok {
		conds := make([]string, 0, len(v))
		for _, c := range v {
			if s, ok := c.(string); ok {
				conds = append(conds, s)
			}
		}
		existing.Conditions = conds
	}
	existing.Drift = false

	if err := o.store.UpsertJourney(ctx, existing); err != nil {
		log.Warn().Str("journey_id", journeyID).Err(err).Msg("Journey mirror update failed, marking drift")
		if derr := o.store.MarkJourneyDrift(ctx, journeyID); derr != nil {
			log.Error().Str("journey_id", journeyID).Err(derr).Msg("Could not flag journey drift")
		}
		return false, nil
	}
	return true, nil
}

// ListRemoteJourneys lists journeys straight from the remote service,
// optionally tag-filtered.
func (o *Orchestrator) ListRemoteJourneys(ctx context.Context, tag string) ([]remote.Journey, error) {
	journeys, err := o.remote.ListJourneys(ctx, tag)
	if err != nil {
		return nil, remote.AsError(err)
	}
	return journeys, nil
}

// GetRemoteJourney reads one journey from the remote service.
func (o *Orchestrator) GetRemoteJourney(ctx context.Context, journeyID string) (*remote.Journey, error) {
	j, err := o.remote.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, remote.AsError(err)
	}
	return j, nil
}

// DeleteJourney removes the journey remotely and from the mirror.
func (o *Orchestrator) DeleteJourney(ctx context.Context, journeyID string) error {
	if err := o.remote.DeleteJourney(ctx, journeyID); err != nil {
		re := remote.AsError(err)
		if re.StatusCode != 404 {
			return re
		}
	}
	return o.store.DeleteJourney(ctx, journeyID)
}

// ── Sessions ────────────────────────────────────────────────

// Sessions are pass-throughs: the remote service owns them and nothing is
// mirrored locally.

func (o *Orchestrator) CreateSession(ctx context.Context, botID, customerID string) (*remote.Session, error) {
	s, err := o.remote.CreateSession(ctx, botID, customerID)
	if err != nil {
		return nil, remote.AsError(err)
	}
	return s, nil
}

func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*remote.Session, error) {
	s, err := o.remote.GetSession(ctx, sessionID)
	if err != nil {
		return nil, remote.AsError(err)
	}
	return s, nil
}

func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	if err := o.remote.DeleteSession(ctx, sessionID); err != nil {
		return remote.AsError(err)
	}
	return nil
}

// SendMessage posts a customer message event into a session.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID, message string) error {
	err := o.remote.SendEvent(ctx, sessionID, remote.Event{
		"kind":    "message",
		"source":  "customer",
		"message": message,
	})
	if err != nil {
		return remote.AsError(err)
	}
	return nil
}

// GetMessages returns the session's events.
func (o *Orchestrator) GetMessages(ctx context.Context, sessionID string) ([]remote.Event, error) {
	events, err := o.remote.GetEvents(ctx, sessionID)
	if err != nil {
		return nil, remote.AsError(err)
	}
	return events, nil
}

// ── Reconciliation ──────────────────────────────────────────

// ListPartiallyCreated returns the bots awaiting reconciliation.
func (o *Orchestrator) ListPartiallyCreated(ctx context.Context) ([]models.Bot, error) {
	return o.store.ListBotsByStatus(ctx, models.StatusPartiallyCreated)
}

// ReconcileBot confirms the remote agent still exists and flips the bot
// back to CREATED. The remote service stays authoritative for children;
// reconciliation repairs status, not contents.
func (o *Orchestrator) ReconcileBot(ctx context.Context, botID string) (*models.Bot, error) {
	bot, err := o.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	if !bot.State.NeedsReconciliation() {
		return bot, nil
	}

	if _, err := o.remote.GetAgent(ctx, botID); err != nil {
		return nil, remote.AsError(err)
	}

	state := models.StateReconciled(time.Now().UTC())
	if err := o.store.UpdateBotState(ctx, botID, state); err != nil {
		return nil, err
	}
	bot.State = state
	log.Info().Str("bot_id", botID).Msg("Bot reconciled")
	return bot, nil
}
