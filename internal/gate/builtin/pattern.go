package builtin

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ruizrica/driftgate/internal/gate"
)

// patternRule is one compiled line-matching rule.
type patternRule struct {
	id       string
	re       *regexp.Regexp
	glob     string
	message  string
	severity gate.Severity
}

// defaultPatternRules are the drift checks applied when the policy
// supplies no rules of its own.
func defaultPatternRules() []patternRule {
	return []patternRule{
		{
			id:       "merge-conflict-marker",
			re:       regexp.MustCompile(`^(<{7}|={7}|>{7})( |$)`),
			message:  "unresolved merge conflict marker",
			severity: gate.SeverityError,
		},
		{
			id:       "trailing-whitespace",
			re:       regexp.MustCompile(`[ \t]+$`),
			message:  "trailing whitespace",
			severity: gate.SeverityWarning,
		},
	}
}

// parseRules compiles rule maps from policy config. An invalid pattern
// becomes an error-severity finding rather than aborting the gate.
func parseRules(raw []map[string]any) ([]patternRule, []gate.Finding) {
	var rules []patternRule
	var bad []gate.Finding
	for i, m := range raw {
		id := cfgString(m, "id", fmt.Sprintf("rule-%d", i))
		pattern := cfgString(m, "pattern", "")
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			bad = append(bad, gate.Finding{
				RuleID:   id,
				Message:  fmt.Sprintf("invalid rule pattern %q: %v", pattern, err),
				Severity: gate.SeverityError,
			})
			continue
		}
		sev := gate.Severity(cfgString(m, "severity", string(gate.SeverityError)))
		rules = append(rules, patternRule{
			id:       id,
			re:       re,
			glob:     cfgString(m, "files", cfgString(m, "glob", "")),
			message:  cfgString(m, "message", "pattern matched"),
			severity: sev,
		})
	}
	return rules, bad
}

// ruleApplies matches a rule glob against the file path or base name.
// An empty glob applies to every file.
func ruleApplies(glob, path string) bool {
	if glob == "" {
		return true
	}
	if ok, _ := filepath.Match(glob, path); ok {
		return true
	}
	ok, _ := filepath.Match(glob, filepath.Base(path))
	return ok
}

// evalRules scans every file line-by-line against every applicable rule.
func evalRules(rules []patternRule, files []gate.File) []gate.Finding {
	var findings []gate.Finding
	for _, f := range files {
		var applicable []patternRule
		for _, r := range rules {
			if ruleApplies(r.glob, f.Path) {
				applicable = append(applicable, r)
			}
		}
		if len(applicable) == 0 {
			continue
		}
		for n, line := range strings.Split(f.Content, "\n") {
			for _, r := range applicable {
				if r.re.MatchString(line) {
					findings = append(findings, gate.Finding{
						RuleID:   r.id,
						Message:  r.message,
						File:     f.Path,
						Line:     n + 1,
						Severity: r.severity,
					})
				}
			}
		}
	}
	return findings
}

// scoreFindings derives a score and pass/warn counts from findings.
func scoreFindings(findings []gate.Finding) (score, errors, warnings int) {
	score = 100
	for _, f := range findings {
		switch f.Severity {
		case gate.SeverityError, gate.SeverityCritical:
			errors++
			score -= 10
		case gate.SeverityWarning:
			warnings++
			score -= 3
		default:
			score -= 1
		}
	}
	return clampScore(score), errors, warnings
}

// PatternGate checks the change scope against line-level pattern rules.
// Policy config may supply rules under "rules"; without config a small
// default rule set applies.
type PatternGate struct {
	defaults []patternRule
}

// NewPatternGate creates the pattern compliance gate.
func NewPatternGate() *PatternGate {
	return &PatternGate{defaults: defaultPatternRules()}
}

func (g *PatternGate) ID() gate.ID  { return gate.PatternCompliance }
func (g *PatternGate) Name() string { return "Pattern Compliance" }

// Run evaluates pattern rules against the change scope.
func (g *PatternGate) Run(ctx context.Context, rc *gate.RunContext) (gate.RawOutcome, error) {
	cfg := rc.Config(gate.PatternCompliance)

	rules := g.defaults
	findings := []gate.Finding{}
	if raw := cfgMaps(cfg, "rules"); len(raw) > 0 {
		parsed, bad := parseRules(raw)
		rules = parsed
		findings = append(findings, bad...)
	}

	findings = append(findings, evalRules(rules, rc.Files)...)
	score, errors, warnings := scoreFindings(findings)

	summary := fmt.Sprintf("%d files checked against %d rules", len(rc.Files), len(rules))
	if len(findings) > 0 {
		summary = fmt.Sprintf("%d pattern violations (%d errors, %d warnings)",
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
