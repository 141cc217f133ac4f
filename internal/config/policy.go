package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/ruizrica/driftgate/internal/engine"
	"github.com/ruizrica/driftgate/internal/gate"
)

// Preset policy identifiers.
const (
	PolicyStrict   = "strict"
	PolicyStandard = "standard"
	PolicyLenient  = "lenient"
)

// PresetPolicies returns the built-in policy tiers keyed by id.
func PresetPolicies() map[string]*engine.Policy {
	return map[string]*engine.Policy{
		PolicyStrict: {
			ID:   PolicyStrict,
			Name: "Strict",
			Aggregation: engine.AggregationConfig{
				Mode: engine.ModeAny,
				RequiredGates: []gate.ID{
					gate.SecurityBoundary,
					gate.ConstraintVerification,
				},
				MinScore: engine.MinScore(90),
			},
			GateConfigs: map[gate.ID]map[string]any{
				gate.PatternCompliance:      {},
				gate.ConstraintVerification: {"max_file_lines": 600},
				gate.RegressionDetection:    {"warn_delta": 3, "fail_delta": 10},
				gate.ImpactSimulation:       {},
				gate.SecurityBoundary:       {},
				gate.CustomRules:            {},
			},
		},
		PolicyStandard: {
			ID:   PolicyStandard,
			Name: "Standard",
			Aggregation: engine.AggregationConfig{
				Mode:          engine.ModeWeighted,
				RequiredGates: []gate.ID{gate.SecurityBoundary},
				Weights: map[gate.ID]float64{
					gate.SecurityBoundary:  2,
					gate.PatternCompliance: 2,
				},
				MinScore: engine.MinScore(70),
			},
			GateConfigs: map[gate.ID]map[string]any{
				gate.PatternCompliance:      {},
				gate.ConstraintVerification: {},
				gate.RegressionDetection:    {},
				gate.SecurityBoundary:       {},
			},
		},
		PolicyLenient: {
			ID:   PolicyLenient,
			Name: "Lenient",
			Aggregation: engine.AggregationConfig{
				Mode:     engine.ModeAll,
				MinScore: engine.MinScore(50),
			},
			GateConfigs: map[gate.ID]map[string]any{
				gate.PatternCompliance: {},
				gate.CustomRules:       {},
			},
		},
	}
}

// PresetIDs returns the preset policy ids, sorted.
func PresetIDs() []string {
	presets := PresetPolicies()
	ids := make([]string, 0, len(presets))
	for id := range presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolvePolicy resolves nameOrPath to a policy: a preset id first,
// otherwise a YAML policy file path.
func ResolvePolicy(nameOrPath string) (*engine.Policy, error) {
	if p, ok := PresetPolicies()[nameOrPath]; ok {
		return p, nil
	}
	if _, err := os.Stat(nameOrPath); err == nil {
		return LoadPolicyFile(nameOrPath)
	}
	return nil, fmt.Errorf("unknown policy %q: not a preset (%v) or readable file",
		nameOrPath, PresetIDs())
}

// LoadPolicyFile parses a YAML policy definition.
func LoadPolicyFile(path string) (*engine.Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("policy file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("policy file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}

	var p engine.Policy
	if err := k.Unmarshal("", &p); err != nil {
		return nil, fmt.Errorf("unmarshaling policy file %s: %w", path, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("policy file %s: missing id", path)
	}

	if err := engine.ValidatePolicy(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
