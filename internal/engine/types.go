// Package engine runs a configured battery of quality gates against one
// proposed change and reduces their verdicts to a single pass/fail
// decision under a named policy.
//
// The flow is Orchestrator.Run -> Registry resolves gate instances ->
// Executor fans the gates out concurrently -> Aggregator normalizes each
// raw outcome -> Evaluator computes the overall verdict -> a snapshot is
// persisted and the RunReport returned.
package engine

import (
	"errors"
	"time"

	"github.com/ruizrica/driftgate/internal/gate"
)

// Errors for policy handling.
var (
	// ErrInvalidPolicy indicates a malformed aggregation configuration.
	// It aborts a run before any gate executes.
	ErrInvalidPolicy = errors.New("invalid policy")
)

// Mode selects how per-gate results combine into one verdict.
type Mode string

const (
	// ModeAny fails the run when any gate failed.
	ModeAny Mode = "any"

	// ModeAll passes the run when at least one gate passed: failure
	// requires every gate to fail. Deliberately lenient; see
	// Evaluator.Evaluate before choosing it.
	ModeAll Mode = "all"

	// ModeWeighted passes when the weighted score reaches MinScore.
	ModeWeighted Mode = "weighted"

	// ModeThreshold scores like ModeWeighted; intended for policies
	// evaluated on a single aggregate score.
	ModeThreshold Mode = "threshold"
)

// DefaultMinScore is the passing score when a policy does not set one.
const DefaultMinScore = 70

// AggregationConfig controls verdict reduction for a policy.
type AggregationConfig struct {
	Mode Mode `json:"mode" koanf:"mode"`

	// RequiredGates must individually pass regardless of mode.
	RequiredGates []gate.ID `json:"required_gates,omitempty" koanf:"required_gates"`

	// Weights are per-gate score weights, default 1.
	Weights map[gate.ID]float64 `json:"weights,omitempty" koanf:"weights"`

	// MinScore is the passing threshold for weighted and threshold
	// modes. Nil means DefaultMinScore; an explicit 0 means every
	// score passes.
	MinScore *float64 `json:"min_score,omitempty" koanf:"min_score"`
}

// MinScore returns a threshold value for literal policy definitions.
func MinScore(v float64) *float64 {
	return &v
}

// Policy names a gate selection plus an aggregation configuration.
type Policy struct {
	ID          string                      `json:"id" koanf:"id"`
	Name        string                      `json:"name" koanf:"name"`
	Aggregation AggregationConfig           `json:"aggregation" koanf:"aggregation"`
	GateConfigs map[gate.ID]map[string]any  `json:"gate_configs,omitempty" koanf:"gate_configs"`
}

// EffectiveMinScore returns the passing threshold, defaulted when the
// policy does not set one.
func (a AggregationConfig) EffectiveMinScore() float64 {
	if a.MinScore == nil {
		return DefaultMinScore
	}
	return *a.MinScore
}

// weight returns the effective weight for a gate, default 1.
func (a AggregationConfig) weight(id gate.ID) float64 {
	if a.Weights == nil {
		return 1
	}
	if w, ok := a.Weights[id]; ok {
		return w
	}
	return 1
}

// Overall is the reduced verdict of one run.
type Overall struct {
	Passed  bool        `json:"passed"`
	Status  gate.Status `json:"status"`
	Score   int         `json:"score"`
	Summary string      `json:"summary"`
}

// RunReport is the complete record of one orchestration run. It is
// finalized only after every launched gate has settled; callers never
// see a partial result set.
type RunReport struct {
	RunID       string                      `json:"run_id"`
	PolicyID    string                      `json:"policy_id"`
	ProjectKey  string                      `json:"project_key,omitempty"`
	GateResults map[gate.ID]gate.Result     `json:"gate_results"`
	Overall     Overall                     `json:"overall"`
	Diagnostics []gate.Diagnostic           `json:"diagnostics,omitempty"`
	StartedAt   time.Time                   `json:"started_at"`
	FinishedAt  time.Time                   `json:"finished_at"`
}
