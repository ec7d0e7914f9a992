package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/botforge/botforge/pkg/models"
)

// IdempotencyKey derives a stable key from the identity fields of a spec:
// name, purpose, and scope. Two submissions with the same identity map to
// the same key regardless of guideline, journey, or styling differences.
func IdempotencyKey(spec *models.BotSpec) string {
	name := spec.Name
	if name == "" {
		name = "unnamed"
	}
	// json.Marshal sorts map keys, so the digest input is deterministic.
	payload, _ := json.Marshal(map[string]string{
		"name":    spec.Name,
		"purpose": spec.Purpose,
		"scope":   spec.Scope,
	})
	sum := sha256.Sum256(payload)
	return name + ":" + hex.EncodeToString(sum[:])[:16]
}

// descriptionLabels fixes the order of the derived agent description.
var descriptionLabels = []string{
	"Purpose",
	"Scope",
	"Target users",
	"Tone",
	"Personality",
	"Primary use cases",
	"Required tools",
	"Constraints",
	"Guardrails",
}

// BuildDescription flattens a spec into the labeled multi-line description
// the remote service stores on the agent. Every label appears even when its
// value is empty, so the layout is stable across agents.
func BuildDescription(spec *models.BotSpec) string {
	values := map[string]string{
		"Purpose":           spec.Purpose,
		"Scope":             spec.Scope,
		"Target users":      spec.TargetUsers,
		"Tone":              spec.Tone,
		"Personality":       spec.Personality,
		"Primary use cases": strings.Join(spec.UseCases, "; "),
		"Required tools":    strings.Join(spec.Tools, ", "),
		"Constraints":       strings.Join(spec.Constraints, "; "),
		"Guardrails":        strings.Join(spec.Guardrails, "; "),
	}
	lines := make([]string, 0, len(descriptionLabels))
	for _, label := range descriptionLabels {
		lines = append(lines, label+": "+values[label])
	}
	return strings.Join(lines, "\n")
}
