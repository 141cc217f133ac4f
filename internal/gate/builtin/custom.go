package builtin

import (
	"context"
	"fmt"

	"github.com/ruizrica/driftgate/internal/gate"
)

// CustomRulesGate evaluates rules supplied entirely by the policy.
// Unlike pattern-compliance it carries no defaults: an empty config is
// a vacuous pass, so policies opt in rule by rule.
//
// Policy config keys:
//
//	rules: [{id, pattern, files, message, severity}]
type CustomRulesGate struct{}

// NewCustomRulesGate creates the custom rules gate.
func NewCustomRulesGate() *CustomRulesGate {
	return &CustomRulesGate{}
}

func (g *CustomRulesGate) ID() gate.ID  { return gate.CustomRules }
func (g *CustomRulesGate) Name() string { return "Custom Rules" }

// Run evaluates the policy-supplied rules against the change scope.
func (g *CustomRulesGate) Run(ctx context.Context, rc *gate.RunContext) (gate.RawOutcome, error) {
	cfg := rc.Config(gate.CustomRules)

	raw := cfgMaps(cfg, "rules")
	if len(raw) == 0 {
		return gate.RawOutcome{
			"passed":  true,
			"score":   100,
			"summary": "no custom rules configured",
		}, nil
	}

	rules, findings := parseRules(raw)
	findings = append(findings, evalRules(rules, rc.Files)...)
	score, errors, warnings := scoreFindings(findings)

	summary := fmt.Sprintf("%d custom rules satisfied", len(rules))
	if len(findings) > 0 {
		summary = fmt.Sprintf("%d custom rule violations (%d errors, %d warnings)",
			len(findings), errors, warnings)
	}

	return gate.RawOutcome{
		"passed":   errors == 0,
		"score":    score,
		"summary":  summary,
		"findings": findings,
		"warnings": warnings,
	}, nil
}
