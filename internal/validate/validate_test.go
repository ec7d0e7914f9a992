package validate_test

import (
	"strings"
	"testing"

	"github.com/botforge/botforge/internal/validate"
	"github.com/botforge/botforge/pkg/models"
)

// validSpec returns a spec that passes every rule.
func validSpec() *models.BotSpec {
	return &models.BotSpec{
		Name:        "support-bot",
		Purpose:     "Answer customer questions",
		Scope:       "Billing and shipping",
		TargetUsers: "Customers",
		Tone:        "Friendly",
		Personality: "Helpful and concise",
		UseCases:    []string{"billing questions"},
		Tools:       []string{"none"},
		Constraints: []string{"no refunds over $100"},
		Guardrails:  []string{"never share account data"},
		Guidelines: []models.GuidelineSpec{
			{Condition: "customer asks about refunds", Action: "explain the policy", Criticality: models.CriticalityHigh},
		},
		Journeys: []models.JourneySpec{
			{Title: "Refund flow", Description: "Walk through a refund", Conditions: []string{"customer wants a refund"}},
		},
	}
}

func TestValidSpecHasNoErrors(t *testing.T) {
	errs := validate.Spec(validSpec())
	if len(errs) != 0 {
		t.Fatalf("Spec() on valid spec returned %d errors: %v", len(errs), errs)
	}
}

func TestMissingRequiredFieldsAggregated(t *testing.T) {
	spec := validSpec()
	spec.Name = ""
	spec.Tone = "   "

	errs := validate.Spec(spec)
	if len(errs) != 1 {
		t.Fatalf("Spec() returned %d errors, want 1 aggregated error: %v", len(errs), errs)
	}
	msg := errs[0].Message
	if !strings.Contains(msg, "name") || !strings.Contains(msg, "tone") {
		t.Errorf("aggregated error %q should name both missing fields", msg)
	}
	if errs[0].Kind != models.ErrorValidation {
		t.Errorf("error kind = %q, want %q", errs[0].Kind, models.ErrorValidation)
	}
	if errs[0].Recoverable {
		t.Error("validation errors must not be recoverable")
	}
}

func TestEmptyListFields(t *testing.T) {
	spec := validSpec()
	spec.UseCases = nil
	spec.Guardrails = []string{"ok", "  "}

	errs := validate.Spec(spec)
	if len(errs) != 2 {
		t.Fatalf("Spec() returned %d errors, want 2: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Message, "use_cases") {
		t.Errorf("first error %q should reference use_cases", errs[0].Message)
	}
	if !strings.Contains(errs[1].Message, "guardrails") {
		t.Errorf("second error %q should reference guardrails", errs[1].Message)
	}
}

func TestToolsNonePlaceholderIsValid(t *testing.T) {
	spec := validSpec()
	spec.Tools = []string{"none"}
	if errs := validate.Spec(spec); len(errs) != 0 {
		t.Errorf("Spec() with tools=[\"none\"] returned errors: %v", errs)
	}
}

func TestGuidelineRules(t *testing.T) {
	spec := validSpec()
	spec.Guidelines = []models.GuidelineSpec{
		{Condition: ""},
		{Condition: "ok", Criticality: "URGENT"},
	}

	errs := validate.Spec(spec)
	if len(errs) != 2 {
		t.Fatalf("Spec() returned %d errors, want 2: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Message, "guidelines[1].condition") {
		t.Errorf("error %q should reference guidelines[1].condition", errs[0].Message)
	}
	if !strings.Contains(errs[1].Message, "guidelines[2].criticality") {
		t.Errorf("error %q should reference guidelines[2].criticality", errs[1].Message)
	}
}

func TestGuidelineActionBlankWhenProvided(t *testing.T) {
	spec := validSpec()
	spec.Guidelines = []models.GuidelineSpec{
		{Condition: "ok", Action: "   "},
	}

	errs := validate.Spec(spec)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "guidelines[1].action") {
		t.Fatalf("Spec() = %v, want single guidelines[1].action error", errs)
	}

	// An omitted action stays optional.
	spec.Guidelines = []models.GuidelineSpec{{Condition: "ok"}}
	if errs := validate.Spec(spec); len(errs) != 0 {
		t.Errorf("Spec() with omitted action returned errors: %v", errs)
	}
}

func TestEmptyGuidelinesList(t *testing.T) {
	spec := validSpec()
	spec.Guidelines = nil
	errs := validate.Spec(spec)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "guidelines") {
		t.Fatalf("Spec() = %v, want single guidelines error", errs)
	}
}

func TestJourneyRules(t *testing.T) {
	spec := validSpec()
	spec.Journeys = []models.JourneySpec{
		{Title: "", Description: "d", Conditions: []string{"c"}},
		{Title: "t", Description: "", Conditions: nil},
	}

	errs := validate.Spec(spec)
	if len(errs) != 3 {
		t.Fatalf("Spec() returned %d errors, want 3: %v", len(errs), errs)
	}
	wants := []string{"journeys[1].title", "journeys[2].description", "journeys[2].conditions"}
	for i, want := range wants {
		if !strings.Contains(errs[i].Message, want) {
			t.Errorf("errs[%d] = %q, want mention of %s", i, errs[i].Message, want)
		}
	}
}

func TestCompositionModeEnum(t *testing.T) {
	spec := validSpec()
	spec.CompositionMode = "RELAXED"
	errs := validate.Spec(spec)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "composition_mode") {
		t.Fatalf("Spec() = %v, want composition_mode error", errs)
	}

	for _, mode := range []models.CompositionMode{models.CompositionFluid, models.CompositionComposited, models.CompositionStrict} {
		spec.CompositionMode = mode
		if errs := validate.Spec(spec); len(errs) != 0 {
			t.Errorf("Spec() with composition_mode=%s returned errors: %v", mode, errs)
		}
	}
}

func TestMaxEngineIterations(t *testing.T) {
	spec := validSpec()
	spec.MaxEngineIterations = -1
	errs := validate.Spec(spec)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "max_engine_iterations") {
		t.Fatalf("Spec() = %v, want max_engine_iterations error", errs)
	}

	spec.MaxEngineIterations = 5
	if errs := validate.Spec(spec); len(errs) != 0 {
		t.Errorf("Spec() with max_engine_iterations=5 returned errors: %v", errs)
	}
}
