package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruizrica/driftgate/internal/gate"
)

func TestFactories_CoverAllBuiltinIDs(t *testing.T) {
	factories := Factories()
	for _, id := range gate.BuiltinIDs() {
		assert.Contains(t, factories, id)
	}
	assert.Len(t, factories, len(gate.BuiltinIDs()))
}

func TestPatternGate_DefaultRules(t *testing.T) {
	g := NewPatternGate()
	rc := &gate.RunContext{
		Files: []gate.File{
			{Path: "a.go", Content: "package a\n<<<<<<< HEAD\nfunc A() {}\n"},
			{Path: "b.go", Content: "package b\n"},
		},
	}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, false, out["passed"])
	findings := out["findings"].([]gate.Finding)
	require.Len(t, findings, 1)
	assert.Equal(t, "merge-conflict-marker", findings[0].RuleID)
	assert.Equal(t, "a.go", findings[0].File)
	assert.Equal(t, 2, findings[0].Line)
}

func TestPatternGate_ConfiguredRules(t *testing.T) {
	g := NewPatternGate()
	rc := &gate.RunContext{
		Files: []gate.File{
			{Path: "handler.go", Content: "x := 1\nfmt.Println(x)\n"},
		},
		GateConfigs: map[gate.ID]map[string]any{
			gate.PatternCompliance: {
				"rules": []any{
					map[string]any{
						"id":       "no-println",
						"pattern":  `fmt\.Println`,
						"files":    "*.go",
						"message":  "use the logger, not Println",
						"severity": "warning",
					},
				},
			},
		},
	}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	// Warning-only findings still pass.
	assert.Equal(t, true, out["passed"])
	assert.Equal(t, 1, out["warnings"])
	findings := out["findings"].([]gate.Finding)
	require.Len(t, findings, 1)
	assert.Equal(t, "no-println", findings[0].RuleID)
	assert.Equal(t, 2, findings[0].Line)
}

func TestPatternGate_InvalidRulePatternBecomesFinding(t *testing.T) {
	g := NewPatternGate()
	rc := &gate.RunContext{
		Files: []gate.File{{Path: "a.go", Content: "ok\n"}},
		GateConfigs: map[gate.ID]map[string]any{
			gate.PatternCompliance: {
				"rules": []any{
					map[string]any{"id": "broken", "pattern": "(["},
				},
			},
		},
	}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, false, out["passed"])
	findings := out["findings"].([]gate.Finding)
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "invalid rule pattern")
}

func TestConstraintGate_MaxFileLines(t *testing.T) {
	g := NewConstraintGate()
	long := ""
	for i := 0; i < 20; i++ {
		long += "line\n"
	}
	rc := &gate.RunContext{
		Files: []gate.File{{Path: "big.go", Content: long}},
		GateConfigs: map[gate.ID]map[string]any{
			gate.ConstraintVerification: {"max_file_lines": 10},
		},
	}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	// Length overruns warn, they do not fail.
	assert.Equal(t, true, out["pass"])
	issues := out["issues"].([]gate.Finding)
	require.Len(t, issues, 1)
	assert.Equal(t, "max-file-lines", issues[0].RuleID)
}

func TestConstraintGate_LayerViolation(t *testing.T) {
	g := NewConstraintGate()
	rc := &gate.RunContext{
		Files: []gate.File{
			{
				Path:    "internal/store/db.go",
				Content: "package store\n\nimport (\n\t\"fmt\"\n\t\"example.com/app/internal/http\"\n)\n",
			},
		},
		GateConfigs: map[gate.ID]map[string]any{
			gate.ConstraintVerification: {
				"layers": []any{
					map[string]any{"from": "internal/store", "deny": "internal/http"},
				},
			},
		},
	}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, false, out["pass"])
	issues := out["issues"].([]gate.Finding)
	require.Len(t, issues, 1)
	assert.Equal(t, "layer-violation", issues[0].RuleID)
	assert.Equal(t, 5, issues[0].Line)
}

func TestConstraintGate_RequireHeader(t *testing.T) {
	g := NewConstraintGate()
	rc := &gate.RunContext{
		Files: []gate.File{
			{Path: "licensed.go", Content: "// Copyright 2026 Acme\npackage a\n"},
			{Path: "bare.go", Content: "package b\n"},
		},
		GateConfigs: map[gate.ID]map[string]any{
			gate.ConstraintVerification: {"require_header": `Copyright \d{4}`},
		},
	}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, false, out["pass"])
	issues := out["issues"].([]gate.Finding)
	require.Len(t, issues, 1)
	assert.Equal(t, "bare.go", issues[0].File)
}

func TestRegressionGate_NoBaselineIsVacuousPass(t *testing.T) {
	g := NewRegressionGate()
	rc := &gate.RunContext{Files: []gate.File{{Path: "a.go"}}}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, true, out["passed"])
	assert.Equal(t, 100, out["score"])
	assert.Contains(t, out["summary"], "no baseline")
}

func TestRegressionGate_ScoreDropFails(t *testing.T) {
	g := NewRegressionGate()
	files := make([]gate.File, 20) // changeScore = 60
	rc := &gate.RunContext{
		Files: files,
		Baseline: &gate.Baseline{
			SnapshotID:    "snap-1",
			OverallPassed: true,
			OverallScore:  95,
		},
	}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, false, out["passed"])
	assert.Contains(t, out["summary"], "dropped 35 points")
}

func TestRegressionGate_SmallDropWarns(t *testing.T) {
	g := NewRegressionGate()
	files := make([]gate.File, 3) // changeScore = 94
	rc := &gate.RunContext{
		Files: files,
		Baseline: &gate.Baseline{
			SnapshotID:    "snap-2",
			OverallPassed: true,
			OverallScore:  100,
		},
	}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, true, out["passed"])
	assert.Equal(t, 1, out["warnings"])
}

func TestImpactGate_CountsEdges(t *testing.T) {
	g := NewImpactGate()
	rc := &gate.RunContext{
		Files: []gate.File{
			{Path: "server.go", Content: "package app\n"},
			{Path: "client.go", Content: "package app\n// talks to server\n"},
		},
	}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	// server is referenced by client: one edge over two files.
	assert.Equal(t, 88, out["score"])
	assert.Contains(t, out["message"], "1 of 2 changed files")
}

func TestImpactGate_EmptyScope(t *testing.T) {
	g := NewImpactGate()

	out, err := g.Run(context.Background(), &gate.RunContext{})
	require.NoError(t, err)
	assert.Equal(t, 100, out["score"])
}

func TestSecurityGate_FindingFails(t *testing.T) {
	g := NewSecurityGateWithScanner(func(content string) ([]SecretFinding, error) {
		if content == "leaky" {
			return []SecretFinding{{RuleID: "github-pat", Description: "GitHub token", Line: 3}}, nil
		}
		return nil, nil
	})

	rc := &gate.RunContext{
		Files: []gate.File{
			{Path: "ok.go", Content: "clean"},
			{Path: "config.env", Content: "leaky"},
		},
	}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, false, out["passed"])
	assert.Equal(t, 0, out["score"])
	findings := out["findings"].([]gate.Finding)
	require.Len(t, findings, 1)
	assert.Equal(t, "github-pat", findings[0].RuleID)
	assert.Equal(t, "config.env", findings[0].File)
	assert.Equal(t, gate.SeverityCritical, findings[0].Severity)
}

func TestSecurityGate_CleanScope(t *testing.T) {
	g := NewSecurityGateWithScanner(func(string) ([]SecretFinding, error) { return nil, nil })

	out, err := g.Run(context.Background(), &gate.RunContext{
		Files: []gate.File{{Path: "a.go", Content: "fine"}},
	})
	require.NoError(t, err)

	assert.Equal(t, true, out["passed"])
	assert.Equal(t, 100, out["score"])
}

func TestCustomRulesGate_EmptyConfigPasses(t *testing.T) {
	g := NewCustomRulesGate()

	out, err := g.Run(context.Background(), &gate.RunContext{
		Files: []gate.File{{Path: "a.go", Content: "anything"}},
	})
	require.NoError(t, err)

	assert.Equal(t, true, out["passed"])
	assert.Contains(t, out["summary"], "no custom rules")
}

func TestCustomRulesGate_ConfiguredRuleFails(t *testing.T) {
	g := NewCustomRulesGate()
	rc := &gate.RunContext{
		Files: []gate.File{{Path: "db.sql", Content: "DROP TABLE users;\n"}},
		GateConfigs: map[gate.ID]map[string]any{
			gate.CustomRules: {
				"rules": []any{
					map[string]any{
						"id":      "no-drop-table",
						"pattern": `DROP\s+TABLE`,
						"message": "destructive migration",
					},
				},
			},
		},
	}

	out, err := g.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, false, out["passed"])
	findings := out["findings"].([]gate.Finding)
	require.Len(t, findings, 1)
	assert.Equal(t, "no-drop-table", findings[0].RuleID)
}
