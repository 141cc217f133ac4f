package builtin

import (
	"context"
	"fmt"

	"github.com/ruizrica/driftgate/internal/gate"
)

// RegressionGate compares the current change against the most recent
// prior snapshot for the project. The orchestrator resolves the
// baseline before execution; without one the gate passes vacuously.
//
// Policy config keys:
//
//	warn_delta: score drop that produces a warning (default 5)
//	fail_delta: score drop that fails the gate (default 15)
type RegressionGate struct{}

// NewRegressionGate creates the regression detection gate.
func NewRegressionGate() *RegressionGate {
	return &RegressionGate{}
}

func (g *RegressionGate) ID() gate.ID  { return gate.RegressionDetection }
func (g *RegressionGate) Name() string { return "Regression Detection" }

// changeScore estimates a health score for the current change from its
// size. Large changesets erode the score; the baseline comparison turns
// the absolute number into a relative drop.
func changeScore(fileCount int) int {
	penalty := 2 * fileCount
	if penalty > 40 {
		penalty = 40
	}
	return 100 - penalty
}

// Run diffs the current change estimate against the baseline snapshot.
func (g *RegressionGate) Run(ctx context.Context, rc *gate.RunContext) (gate.RawOutcome, error) {
	cfg := rc.Config(gate.RegressionDetection)
	warnDelta := cfgInt(cfg, "warn_delta", 5)
	failDelta := cfgInt(cfg, "fail_delta", 15)

	if rc.Baseline == nil {
		return gate.RawOutcome{
			"passed":  true,
			"score":   100,
			"summary": "no baseline snapshot for project",
		}, nil
	}

	current := changeScore(len(rc.Files))
	drop := rc.Baseline.OverallScore - current

	warnings := 0
	if !rc.Baseline.OverallPassed {
		warnings++
	}

	switch {
	case failDelta > 0 && drop >= failDelta:
		return gate.RawOutcome{
			"passed": false,
			"score":  clampScore(current),
			"summary": fmt.Sprintf("score dropped %d points from baseline %s (%d -> %d)",
				drop, rc.Baseline.SnapshotID, rc.Baseline.OverallScore, current),
		}, nil
	case warnDelta > 0 && drop >= warnDelta:
		warnings++
		return gate.RawOutcome{
			"passed": true,
			"score":  clampScore(current),
			"summary": fmt.Sprintf("score dropped %d points from baseline %s",
				drop, rc.Baseline.SnapshotID),
			"warnings": warnings,
		}, nil
	}

	summary := fmt.Sprintf("no regression against baseline %s", rc.Baseline.SnapshotID)
	if warnings > 0 {
		summary = fmt.Sprintf("baseline run %s was failing", rc.Baseline.SnapshotID)
	}

	return gate.RawOutcome{
		"passed":   true,
		"score":    clampScore(current),
		"summary":  summary,
		"warnings": warnings,
	}, nil
}
