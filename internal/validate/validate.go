// Package validate checks bot specifications against the schema the
// creation flow requires. Validation is pure: it collects every violation
// rather than stopping at the first, so a caller can fix a spec in one pass.
package validate

import (
	"fmt"
	"strings"

	"github.com/botforge/botforge/pkg/models"
)

// requiredStrings are the scalar fields every spec must carry.
var requiredStrings = []struct {
	name  string
	value func(*models.BotSpec) string
}{
	{"name", func(s *models.BotSpec) string { return s.Name }},
	{"purpose", func(s *models.BotSpec) string { return s.Purpose }},
	{"scope", func(s *models.BotSpec) string { return s.Scope }},
	{"target_users", func(s *models.BotSpec) string { return s.TargetUsers }},
	{"tone", func(s *models.BotSpec) string { return s.Tone }},
	{"personality", func(s *models.BotSpec) string { return s.Personality }},
}

// requiredLists are the string-list fields every spec must carry non-empty.
// Tools may use the literal ["none"] placeholder; it satisfies the rule
// without special-casing.
var requiredLists = []struct {
	name  string
	value func(*models.BotSpec) []string
}{
	{"use_cases", func(s *models.BotSpec) []string { return s.UseCases }},
	{"tools", func(s *models.BotSpec) []string { return s.Tools }},
	{"constraints", func(s *models.BotSpec) []string { return s.Constraints }},
	{"guardrails", func(s *models.BotSpec) []string { return s.Guardrails }},
}

// Spec validates a bot specification. An empty result means valid.
func Spec(spec *models.BotSpec) []models.OrchestratorError {
	var errs []models.OrchestratorError

	// One aggregated error for all absent required fields, then individual
	// errors for present-but-empty values.
	var missing []string
	for _, f := range requiredStrings {
		if strings.TrimSpace(f.value(spec)) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		errs = append(errs, validationError(
			fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
		))
	}

	for _, f := range requiredLists {
		items := f.value(spec)
		if len(items) == 0 {
			errs = append(errs, validationError(fmt.Sprintf("'%s' must be a non-empty list", f.name)))
			continue
		}
		for _, item := range items {
			if strings.TrimSpace(item) == "" {
				errs = append(errs, validationError(fmt.Sprintf("'%s' must contain only non-empty strings", f.name)))
				break
			}
		}
	}

	errs = append(errs, validateGuidelines(spec.Guidelines)...)
	errs = append(errs, validateJourneys(spec.Journeys)...)

	if spec.CompositionMode != "" {
		switch spec.CompositionMode {
		case models.CompositionFluid, models.CompositionComposited, models.CompositionStrict:
		default:
			errs = append(errs, validationError("composition_mode must be FLUID, COMPOSITED, or STRICT"))
		}
	}

	if spec.MaxEngineIterations < 0 {
		errs = append(errs, validationError("max_engine_iterations must be a positive integer"))
	}

	return errs
}

func validateGuidelines(guidelines []models.GuidelineSpec) []models.OrchestratorError {
	if len(guidelines) == 0 {
		return []models.OrchestratorError{validationError("'guidelines' must be a non-empty list")}
	}
	var errs []models.OrchestratorError
	for i, g := range guidelines {
		idx := i + 1
		if strings.TrimSpace(g.Condition) == "" {
			errs = append(errs, validationError(fmt.Sprintf("guidelines[%d].condition is required", idx)))
		}
		if g.Action != "" && strings.TrimSpace(g.Action) == "" {
			errs = append(errs, validationError(fmt.Sprintf("guidelines[%d].action must be non-empty when provided", idx)))
		}
		if g.Criticality != "" {
			switch g.Criticality {
			case models.CriticalityLow, models.CriticalityMedium, models.CriticalityHigh:
			default:
				errs = append(errs, validationError(fmt.Sprintf("guidelines[%d].criticality must be LOW, MEDIUM, or HIGH", idx)))
			}
		}
	}
	return errs
}

func validateJourneys(journeys []models.JourneySpec) []models.OrchestratorError {
	if len(journeys) == 0 {
		return []models.OrchestratorError{validationError("'journeys' must be a non-empty list")}
	}
	var errs []models.OrchestratorError
	for i, j := range journeys {
		idx := i + 1
		if strings.TrimSpace(j.Title) == "" {
			errs = append(errs, validationError(fmt.Sprintf("journeys[%d].title is required", idx)))
		}
		if strings.TrimSpace(j.Description) == "" {
			errs = append(errs, validationError(fmt.Sprintf("journeys[%d].description is required", idx)))
		}
		if len(j.Conditions) == 0 {
			errs = append(errs, validationError(fmt.Sprintf("journeys[%d].conditions must be a non-empty list", idx)))
			continue
		}
		for _, c := range j.Conditions {
			if strings.TrimSpace(c) == "" {
				errs = append(errs, validationError(fmt.Sprintf("journeys[%d].conditions must contain only non-empty strings", idx)))
				break
			}
		}
	}
	return errs
}

func validationError(msg string) models.OrchestratorError {
	return models.OrchestratorError{
		Kind:        models.ErrorValidation,
		Message:     msg,
		Recoverable: false,
	}
}
