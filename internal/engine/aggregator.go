package engine

import (
	"fmt"

	"github.com/ruizrica/driftgate/internal/gate"
)

// Aggregator normalizes heterogeneous raw gate outcomes into the
// canonical gate.Result shape. Gates report under their own keys
// (passed/pass flags, numeric scores, findings or issues lists, warning
// counts); Normalize maps whatever is recognizable and clamps the score
// into [0,100].
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Normalize converts one settled outcome into a canonical result.
// Errors and timeouts become failed results with score 0 and the error
// text as summary; they are never surfaced as errors to the caller.
func (a *Aggregator) Normalize(id gate.ID, name string, out Outcome) gate.Result {
	durationMs := out.Duration.Milliseconds()

	if out.Err != nil {
		return gate.Result{
			GateID:     id,
			GateName:   name,
			Status:     gate.StatusFailed,
			Passed:     false,
			Score:      0,
			Summary:    out.Err.Error(),
			DurationMs: durationMs,
		}
	}

	passed := rawPassed(out.Raw)
	score := rawScore(out.Raw, passed)
	findings := rawFindings(out.Raw)
	warnings := rawWarnings(out.Raw, findings)

	status := gate.StatusPassed
	switch {
	case !passed:
		status = gate.StatusFailed
	case warnings > 0:
		status = gate.StatusWarned
	}

	summary := rawSummary(out.Raw)
	if summary == "" {
		summary = fmt.Sprintf("%s %s", name, status)
	}

	return gate.Result{
		GateID:     id,
		GateName:   name,
		Status:     status,
		Passed:     passed,
		Score:      score,
		Summary:    summary,
		Findings:   findings,
		DurationMs: durationMs,
	}
}

// rawPassed extracts the pass flag. Gates report it as "passed",
// "pass", or an inverted "failed"; a score-only outcome defaults to
// passed, since a gate that found a failure is expected to say so.
func rawPassed(raw gate.RawOutcome) bool {
	if v, ok := raw["passed"].(bool); ok {
		return v
	}
	if v, ok := raw["pass"].(bool); ok {
		return v
	}
	if v, ok := raw["failed"].(bool); ok {
		return !v
	}
	return true
}

// rawScore extracts and clamps the score; without one the pass flag
// decides between 100 and 0.
func rawScore(raw gate.RawOutcome, passed bool) int {
	score, ok := numeric(raw["score"])
	if !ok {
		if passed {
			return 100
		}
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func numeric(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}

// rawSummary extracts the summary under its common aliases.
func rawSummary(raw gate.RawOutcome) string {
	for _, key := range []string{"summary", "message"} {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// rawFindings extracts findings reported under "findings" or "issues",
// as typed slices or raw maps.
func rawFindings(raw gate.RawOutcome) []gate.Finding {
	for _, key := range []string{"findings", "issues"} {
		switch v := raw[key].(type) {
		case []gate.Finding:
			return v
		case []any:
			var out []gate.Finding
			for _, item := range v {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				f := gate.Finding{Severity: gate.SeverityError}
				if s, ok := m["rule_id"].(string); ok {
					f.RuleID = s
				}
				if s, ok := m["message"].(string); ok {
					f.Message = s
				}
				if s, ok := m["file"].(string); ok {
					f.File = s
				}
				if n, ok := numeric(m["line"]); ok {
					f.Line = n
				}
				if s, ok := m["severity"].(string); ok {
					f.Severity = gate.Severity(s)
				}
				out = append(out, f)
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// rawWarnings derives the has-warnings signal from an explicit count or
// from warning-severity findings.
func rawWarnings(raw gate.RawOutcome, findings []gate.Finding) int {
	if n, ok := numeric(raw["warnings"]); ok {
		return n
	}
	count := 0
	for _, f := range findings {
		if f.Severity == gate.SeverityWarning {
			count++
		}
	}
	return count
}
