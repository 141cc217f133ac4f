// Package gate defines the quality-gate capability contract and the
// canonical result model shared by the engine, the built-in gates, and
// the snapshot store.
//
// A Gate is an independently executable analysis check. It receives a
// RunContext describing the proposed change and reports a RawOutcome in
// whatever shape suits its analysis; the engine's aggregator normalizes
// every outcome into a Result. Gates hold no reference back into the
// engine, so gate implementations and the orchestrator can never form a
// dependency cycle.
package gate

import (
	"context"
	"time"
)

// ID identifies a gate kind. The same ID always resolves to the same
// cached instance within a Registry.
type ID string

// Built-in gate identifiers.
const (
	PatternCompliance      ID = "pattern-compliance"
	ConstraintVerification ID = "constraint-verification"
	RegressionDetection    ID = "regression-detection"
	ImpactSimulation       ID = "impact-simulation"
	SecurityBoundary       ID = "security-boundary"
	CustomRules            ID = "custom-rules"
)

// BuiltinIDs returns all built-in gate identifiers in registration order.
func BuiltinIDs() []ID {
	return []ID{
		PatternCompliance,
		ConstraintVerification,
		RegressionDetection,
		ImpactSimulation,
		SecurityBoundary,
		CustomRules,
	}
}

// Gate is a single unit of analysis. Instances are cached as process
// singletons by the Registry, so implementations must be safe for
// concurrent Run calls and must not retain per-call mutable state.
type Gate interface {
	// ID returns the stable gate identifier.
	ID() ID

	// Name returns a human-readable gate name.
	Name() string

	// Run executes the analysis against one change context.
	Run(ctx context.Context, rc *RunContext) (RawOutcome, error)
}

// Factory constructs a gate instance. Factories for built-in gates are
// supplied to the Registry at process start; a factory error means the
// gate is unavailable, not that the process is broken.
type Factory func() (Gate, error)

// RawOutcome is the untyped payload a gate reports. Gates are free to
// use their own keys (booleans, score fields, finding lists under
// different names); the aggregator maps recognized keys into the
// canonical Result shape.
type RawOutcome map[string]any

// File is one file in the change scope, with its content loaded.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Baseline is the slice of the most recent prior snapshot that gates
// are allowed to see. The orchestrator resolves it from the store
// before execution; gates never touch the store directly.
type Baseline struct {
	SnapshotID    string       `json:"snapshot_id"`
	PolicyID      string       `json:"policy_id"`
	OverallPassed bool         `json:"overall_passed"`
	OverallScore  int          `json:"overall_score"`
	GateScores    map[ID]int   `json:"gate_scores,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// RunContext describes one proposed change under analysis. It is shared
// read-only across all gates of a run.
type RunContext struct {
	// ProjectRoot is the directory the change belongs to.
	ProjectRoot string

	// ProjectKey keys snapshot history. Empty disables persistence.
	ProjectKey string

	// Files is the change scope with contents loaded.
	Files []File

	// GateConfigs routes each gate's opaque policy configuration.
	GateConfigs map[ID]map[string]any

	// Baseline is the latest prior snapshot, nil when none exists.
	Baseline *Baseline
}

// Config returns the policy configuration routed to the given gate,
// never nil.
func (rc *RunContext) Config(id ID) map[string]any {
	if rc == nil || rc.GateConfigs == nil {
		return map[string]any{}
	}
	cfg, ok := rc.GateConfigs[id]
	if !ok || cfg == nil {
		return map[string]any{}
	}
	return cfg
}

// Status is the canonical per-gate verdict.
type Status string

const (
	StatusPassed Status = "passed"
	StatusWarned Status = "warned"
	StatusFailed Status = "failed"
)

// Severity grades a finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Finding is a single concrete issue reported by a gate.
type Finding struct {
	RuleID   string   `json:"rule_id,omitempty"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Severity Severity `json:"severity"`
}

// Result is the canonical record of one gate execution. It is produced
// once per (gate, run) and never mutated after creation.
type Result struct {
	GateID     ID        `json:"gate_id"`
	GateName   string    `json:"gate_name"`
	Status     Status    `json:"status"`
	Passed     bool      `json:"passed"`
	Score      int       `json:"score"`
	Summary    string    `json:"summary"`
	Findings   []Finding `json:"findings,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}
