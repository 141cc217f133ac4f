package builtin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ruizrica/driftgate/internal/gate"
)

// ImpactGate simulates the blast radius of a change by counting
// cross-references among the changed files: a file whose stem appears
// in another changed file is treated as a dependency edge. A change
// where everything references everything is riskier than the same
// number of isolated edits.
//
// Policy config keys:
//
//	warn_ratio: edges-per-file ratio that produces a warning (default 2)
type ImpactGate struct{}

// NewImpactGate creates the impact simulation gate.
func NewImpactGate() *ImpactGate {
	return &ImpactGate{}
}

func (g *ImpactGate) ID() gate.ID  { return gate.ImpactSimulation }
func (g *ImpactGate) Name() string { return "Impact Simulation" }

// fileStem returns the reference token for a file: its base name
// without extension.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run counts dependency edges among the changed files.
func (g *ImpactGate) Run(ctx context.Context, rc *gate.RunContext) (gate.RawOutcome, error) {
	cfg := rc.Config(gate.ImpactSimulation)
	warnRatio := cfgFloat(cfg, "warn_ratio", 2.0)

	if len(rc.Files) == 0 {
		return gate.RawOutcome{
			"score":   100,
			"message": "empty change scope",
		}, nil
	}

	edges := 0
	impacted := make(map[string]struct{})
	for _, f := range rc.Files {
		stem := fileStem(f.Path)
		if stem == "" {
			continue
		}
		for _, other := range rc.Files {
			if other.Path == f.Path {
				continue
			}
			if strings.Contains(other.Content, stem) {
				edges++
				impacted[f.Path] = struct{}{}
			}
		}
	}

	ratio := float64(edges) / float64(len(rc.Files))
	score := clampScore(100 - int(ratio*25))

	warnings := 0
	if warnRatio > 0 && ratio >= warnRatio {
		warnings = 1
	}

	// Score-only outcome: no explicit pass flag, the aggregator derives
	// the verdict from the score.
	return gate.RawOutcome{
		"score": score,
		"message": fmt.Sprintf("%d of %d changed files referenced by other changes (%d edges)",
			len(impacted), len(rc.Files), edges),
		"warnings": warnings,
	}, nil
}
