// Package builtin provides the six built-in quality gates. Factories
// returns the bindings a Registry consumes at process start; each gate
// is stateless across runs and safe for concurrent use.
package builtin

import (
	"github.com/ruizrica/driftgate/internal/gate"
)

// Factories returns the built-in gate factories keyed by gate id.
// Construction is deferred to the registry's first access, so a gate
// that cannot build (for example a secret detector whose ruleset fails
// to compile) is recorded as a startup diagnostic instead of breaking
// every caller.
func Factories() map[gate.ID]gate.Factory {
	return map[gate.ID]gate.Factory{
		gate.PatternCompliance: func() (gate.Gate, error) {
			return NewPatternGate(), nil
		},
		gate.ConstraintVerification: func() (gate.Gate, error) {
			return NewConstraintGate(), nil
		},
		gate.RegressionDetection: func() (gate.Gate, error) {
			return NewRegressionGate(), nil
		},
		gate.ImpactSimulation: func() (gate.Gate, error) {
			return NewImpactGate(), nil
		},
		gate.SecurityBoundary: NewSecurityGate,
		gate.CustomRules: func() (gate.Gate, error) {
			return NewCustomRulesGate(), nil
		},
	}
}

// Tolerant config extraction. Policy gate configs arrive as untyped
// maps (decoded from YAML or JSON), so numeric values may be int,
// int64, or float64 depending on the decoder.

func cfgInt(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func cfgFloat(cfg map[string]any, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

func cfgString(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

// cfgMaps returns the value under key as a slice of maps, accepting
// both []any and []map[string]any forms.
func cfgMaps(cfg map[string]any, key string) []map[string]any {
	switch v := cfg[key].(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
