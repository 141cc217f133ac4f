package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ruizrica/driftgate/internal/gate"
)

// Evaluator reduces a complete set of gate results into one overall
// verdict under a policy's aggregation configuration.
type Evaluator struct{}

// NewEvaluator creates an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// ValidatePolicy rejects malformed aggregation configurations before
// any gate executes. An unrecognized mode is not an error; Evaluate
// falls back to ModeAny for it.
func ValidatePolicy(p *Policy) error {
	if p == nil {
		return fmt.Errorf("%w: policy is nil", ErrInvalidPolicy)
	}
	agg := p.Aggregation
	if agg.MinScore != nil {
		if *agg.MinScore < 0 {
			return fmt.Errorf("%w: min_score %v is negative", ErrInvalidPolicy, *agg.MinScore)
		}
		if *agg.MinScore > 100 {
			return fmt.Errorf("%w: min_score %v exceeds 100", ErrInvalidPolicy, *agg.MinScore)
		}
	}
	for id, w := range agg.Weights {
		if w < 0 {
			return fmt.Errorf("%w: weight for gate %s is negative", ErrInvalidPolicy, id)
		}
	}
	return nil
}

// Evaluate computes the overall verdict.
//
// Required gates short-circuit first: any required gate that ran and
// failed forces an overall failure regardless of mode. The score is
// always the weighted average of all gate scores rounded to the nearest
// integer; with zero total weight (including the empty gate set) the
// score is 100, a vacuous pass.
//
// ModeAll is deliberately lenient: the run fails only when every gate
// failed. Choose ModeAny for the conventional "one failure fails the
// run" semantics.
func (ev *Evaluator) Evaluate(results map[gate.ID]gate.Result, p *Policy) Overall {
	agg := p.Aggregation
	score := weightedScore(results, agg)

	// Required-gate short-circuit, independent of mode.
	for _, id := range agg.RequiredGates {
		r, ok := results[id]
		if !ok {
			continue
		}
		if !r.Passed {
			return Overall{
				Passed:  false,
				Status:  gate.StatusFailed,
				Score:   score,
				Summary: fmt.Sprintf("required gate %s failed", r.GateName),
			}
		}
	}

	switch agg.Mode {
	case ModeAll:
		return evaluateAll(results, score)
	case ModeWeighted, ModeThreshold:
		return evaluateThreshold(score, agg.EffectiveMinScore())
	default:
		// ModeAny, and the fallback for unrecognized modes.
		return evaluateAny(results, score)
	}
}

// weightedScore averages all gate scores under the policy weights.
func weightedScore(results map[gate.ID]gate.Result, agg AggregationConfig) int {
	var totalWeight, weightedSum float64
	for id, r := range results {
		w := agg.weight(id)
		totalWeight += w
		weightedSum += float64(r.Score) * w
	}
	if totalWeight == 0 {
		return 100
	}
	return int(math.Round(weightedSum / totalWeight))
}

// evaluateAny fails on any failed gate, warns on any warned gate.
func evaluateAny(results map[gate.ID]gate.Result, score int) Overall {
	var failedNames []string
	warnings := 0
	for _, r := range results {
		switch r.Status {
		case gate.StatusFailed:
			failedNames = append(failedNames, r.GateName)
		case gate.StatusWarned:
			warnings++
		}
	}

	if len(failedNames) > 0 {
		sort.Strings(failedNames)
		return Overall{
			Passed:  false,
			Status:  gate.StatusFailed,
			Score:   score,
			Summary: fmt.Sprintf("failed gates: %s", strings.Join(failedNames, ", ")),
		}
	}

	if warnings > 0 {
		noun := "warnings"
		if warnings == 1 {
			noun = "warning"
		}
		return Overall{
			Passed:  true,
			Status:  gate.StatusWarned,
			Score:   score,
			Summary: fmt.Sprintf("passed with %d %s", warnings, noun),
		}
	}

	return Overall{
		Passed:  true,
		Status:  gate.StatusPassed,
		Score:   score,
		Summary: fmt.Sprintf("all %d gates passed", len(results)),
	}
}

// evaluateAll passes when at least one gate individually passed.
func evaluateAll(results map[gate.ID]gate.Result, score int) Overall {
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}

	if len(results) > 0 && passed == 0 {
		return Overall{
			Passed:  false,
			Status:  gate.StatusFailed,
			Score:   score,
			Summary: "All gates failed",
		}
	}

	status := gate.StatusPassed
	if passed < len(results) {
		status = gate.StatusWarned
	}
	return Overall{
		Passed:  true,
		Status:  status,
		Score:   score,
		Summary: fmt.Sprintf("%d/%d gates passed", passed, len(results)),
	}
}

// evaluateThreshold passes when the weighted score reaches minScore.
func evaluateThreshold(score int, minScore float64) Overall {
	if float64(score) >= minScore {
		return Overall{
			Passed:  true,
			Status:  gate.StatusPassed,
			Score:   score,
			Summary: fmt.Sprintf("score %d meets minimum %g", score, minScore),
		}
	}
	return Overall{
		Passed:  false,
		Status:  gate.StatusFailed,
		Score:   score,
		Summary: fmt.Sprintf("score %d below minimum %g", score, minScore),
	}
}
