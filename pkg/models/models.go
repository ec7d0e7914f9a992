// Package models defines the domain types for the BotForge control plane:
// bot specifications submitted by callers, the persisted bot/guideline/journey
// entities mirrored from the remote agent service, and the structured result
// returned by the creation flow.
package models

import (
	"strings"
	"time"
)

// ── Status & errors ─────────────────────────────────────────

// BotStatus is the lifecycle state of a bot creation.
type BotStatus string

const (
	StatusPending          BotStatus = "PENDING"
	StatusCreated          BotStatus = "CREATED"
	StatusPartiallyCreated BotStatus = "PARTIALLY_CREATED"
	StatusFailed           BotStatus = "FAILED"
)

// ErrorKind classifies orchestrator errors for actionable diagnostics.
type ErrorKind string

const (
	ErrorValidation          ErrorKind = "VALIDATION"
	ErrorAPIFailure          ErrorKind = "API_FAILURE"
	ErrorPersistenceFailure  ErrorKind = "PERSISTENCE_FAILURE"
	ErrorIdempotencyConflict ErrorKind = "IDEMPOTENCY_CONFLICT"
	ErrorInternal            ErrorKind = "INTERNAL"
)

// OrchestratorError is a structured, classified error carried in a
// CreationResult. Recoverable errors may be resolved by retrying the
// operation or by reconciliation; validation errors require caller fixes.
type OrchestratorError struct {
	Kind        ErrorKind      `json:"kind"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Recoverable bool           `json:"recoverable"`
}

func (e OrchestratorError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// ── Criticality ─────────────────────────────────────────────

// Criticality is the priority level of a guideline.
type Criticality string

const (
	CriticalityLow    Criticality = "LOW"
	CriticalityMedium Criticality = "MEDIUM"
	CriticalityHigh   Criticality = "HIGH"
)

// Remote maps a criticality to the remote service's lowercase encoding.
// Absent or unrecognized values normalize to "medium".
func (c Criticality) Remote() string {
	switch c {
	case CriticalityLow:
		return "low"
	case CriticalityHigh:
		return "high"
	default:
		return "medium"
	}
}

// CriticalityFromRemote parses the remote encoding back into a Criticality,
// tolerating case and whitespace variations. Unknown values become MEDIUM.
func CriticalityFromRemote(s string) Criticality {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return CriticalityLow
	case "high":
		return CriticalityHigh
	default:
		return CriticalityMedium
	}
}

// ── Composition mode ────────────────────────────────────────

// CompositionMode controls how the remote agent composes responses.
type CompositionMode string

const (
	CompositionFluid      CompositionMode = "FLUID"
	CompositionComposited CompositionMode = "COMPOSITED"
	CompositionStrict     CompositionMode = "STRICT"
)

// RemoteEncoding selects which string encoding is sent to the remote service
// for COMPOSITED and STRICT modes. The two encodings observed in the wild
// disagree on word order; which one the service accepts must be confirmed
// against the deployed version, so it is configuration, not a constant.
type RemoteEncoding string

const (
	// EncodingSuffix encodes COMPOSITED as "composited_canned" and STRICT
	// as "strict_canned".
	EncodingSuffix RemoteEncoding = "suffix"
	// EncodingPrefix encodes COMPOSITED as "canned_composited" and STRICT
	// as "canned_strict".
	EncodingPrefix RemoteEncoding = "prefix"
)

// Valid reports whether e is a known encoding.
func (e RemoteEncoding) Valid() bool {
	return e == EncodingSuffix || e == EncodingPrefix
}

// Remote maps the composition mode to the remote service's encoding.
// Absent or unrecognized modes normalize to "fluid".
func (m CompositionMode) Remote(enc RemoteEncoding) string {
	switch m {
	case CompositionComposited:
		if enc == EncodingPrefix {
			return "canned_composited"
		}
		return "composited_canned"
	case CompositionStrict:
		if enc == EncodingPrefix {
			return "canned_strict"
		}
		return "strict_canned"
	default:
		return "fluid"
	}
}

// CompositionModeFromRemote parses a remote encoding back into a
// CompositionMode. Both word orders are accepted, as are the bare mode
// names, since persisted records may carry either variant.
func CompositionModeFromRemote(s string) CompositionMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "composited", "composited_canned", "canned_composited":
		return CompositionComposited
	case "strict", "strict_canned", "canned_strict":
		return CompositionStrict
	default:
		return CompositionFluid
	}
}

// ── Specification (input) ───────────────────────────────────

// GuidelineSpec is one condition→action behavioral rule in a bot spec.
type GuidelineSpec struct {
	Condition   string      `json:"condition"`
	Action      string      `json:"action,omitempty"`
	Description string      `json:"description,omitempty"`
	Criticality Criticality `json:"criticality,omitempty"`
}

// JourneySpec is one named multi-condition conversational flow in a bot spec.
type JourneySpec struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Conditions  []string `json:"conditions"`
}

// BotSpec is the complete specification submitted by a caller. It is not
// persisted as an entity; a verbatim snapshot is stored on the Bot record
// so the original intent survives the derived description.
type BotSpec struct {
	Name        string `json:"name"`
	Purpose     string `json:"purpose"`
	Scope       string `json:"scope"`
	TargetUsers string `json:"target_users"`
	Tone        string `json:"tone"`
	Personality string `json:"personality"`

	UseCases    []string `json:"use_cases"`
	Tools       []string `json:"tools"`
	Constraints []string `json:"constraints"`
	Guardrails  []string `json:"guardrails"`

	Guidelines []GuidelineSpec `json:"guidelines"`
	Journeys   []JourneySpec   `json:"journeys"`

	CompositionMode     CompositionMode `json:"composition_mode,omitempty"`
	MaxEngineIterations int             `json:"max_engine_iterations,omitempty"`
}

// DefaultMaxEngineIterations applies when the spec leaves the field unset.
const DefaultMaxEngineIterations = 3

// ── Persisted entities ──────────────────────────────────────

// BotState is the persisted lifecycle state of a bot. It is a tagged value:
// LastError is meaningful only while Status is PARTIALLY_CREATED or FAILED,
// and the needs-reconciliation flag is derived from Status rather than
// stored, so a CREATED bot can never claim to need repair.
type BotState struct {
	Status       BotStatus  `bson:"status" json:"status"`
	LastError    string     `bson:"last_error,omitempty" json:"last_error,omitempty"`
	ReconciledAt *time.Time `bson:"reconciled_at,omitempty" json:"reconciled_at,omitempty"`
}

// StateCreated returns the terminal success state.
func StateCreated() BotState {
	return BotState{Status: StatusCreated}
}

// StatePartiallyCreated returns the reconcilable state recorded when the
// remote agent exists but local persistence failed.
func StatePartiallyCreated(lastError string) BotState {
	return BotState{Status: StatusPartiallyCreated, LastError: lastError}
}

// StateReconciled returns the CREATED state produced by reconciliation,
// stamped with the repair time.
func StateReconciled(at time.Time) BotState {
	return BotState{Status: StatusCreated, ReconciledAt: &at}
}

// NeedsReconciliation reports whether the bot is awaiting repair.
func (s BotState) NeedsReconciliation() bool {
	return s.Status == StatusPartiallyCreated
}

// Bot is the persisted mirror of a remote agent. BotID is assigned by the
// remote service and is the lookup key everywhere; it can be remapped when
// the remote service reassigns IDs across restarts.
type Bot struct {
	BotID               string    `bson:"bot_id" json:"bot_id"`
	Name                string    `bson:"name" json:"name"`
	Description         string    `bson:"description" json:"description"`
	CompositionMode     string    `bson:"composition_mode" json:"composition_mode"` // remote-native encoding
	MaxEngineIterations int       `bson:"max_engine_iterations" json:"max_engine_iterations"`
	IdempotencyKey      string    `bson:"idempotency_key,omitempty" json:"idempotency_key,omitempty"`
	State               BotState  `bson:"state" json:"state"`
	SourceSpec          *BotSpec  `bson:"source_spec,omitempty" json:"source_spec,omitempty"`
	CreatedAt           time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time `bson:"updated_at" json:"updated_at"`
}

// Guideline is the persisted mirror of a remote guideline. Drift marks a
// record whose remote counterpart was mutated but whose mirror write failed;
// the remote service is authoritative for drifted records.
type Guideline struct {
	GuidelineID string    `bson:"guideline_id" json:"guideline_id"`
	BotID       string    `bson:"bot_id" json:"bot_id"`
	Condition   string    `bson:"condition" json:"condition"`
	Action      string    `bson:"action,omitempty" json:"action,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Criticality string    `bson:"criticality" json:"criticality"` // remote-native encoding
	Drift       bool      `bson:"drift,omitempty" json:"drift,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// Journey is the persisted mirror of a remote journey. Conditions keep their
// submitted order; it is presentation order, not evaluation order.
type Journey struct {
	JourneyID   string    `bson:"journey_id" json:"journey_id"`
	BotID       string    `bson:"bot_id" json:"bot_id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Conditions  []string  `bson:"conditions" json:"conditions"`
	Drift       bool      `bson:"drift,omitempty" json:"drift,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// BotDetail is a bot joined with its persisted children, as served by the
// read endpoints.
type BotDetail struct {
	Bot        Bot         `json:"bot"`
	Guidelines []Guideline `json:"guidelines"`
	Journeys   []Journey   `json:"journeys"`
}

// ── Creation result ─────────────────────────────────────────

// CreationResult is returned once per create call and is never persisted.
// Success means the user-visible remote resource exists, even when local
// persistence degraded the status to PARTIALLY_CREATED.
type CreationResult struct {
	Success           bool                `json:"success"`
	Status            BotStatus           `json:"status"`
	BotID             string              `json:"bot_id,omitempty"`
	BotName           string              `json:"bot_name,omitempty"`
	GuidelinesCreated int                 `json:"guidelines_created"`
	JourneysCreated   int                 `json:"journeys_created"`
	Persisted         bool                `json:"persisted_to_mongodb"`
	IdempotencyKey    string              `json:"idempotency_key,omitempty"`
	Errors            []OrchestratorError `json:"errors"`
	CreatedAt         time.Time           `json:"created_at"`
}
