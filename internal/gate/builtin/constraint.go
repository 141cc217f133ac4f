package builtin

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ruizrica/driftgate/internal/gate"
)

// importRe matches quoted import paths in Go-style import lines.
var importRe = regexp.MustCompile(`^\s*(?:import\s+)?(?:[A-Za-z0-9_.]+\s+)?"([^"]+)"`)

// layerRule forbids imports of deny from files under from.
type layerRule struct {
	from string
	deny string
}

// ConstraintGate verifies structural constraints over the change scope:
// file length limits, layering rules between path prefixes, and an
// optional required file header.
//
// Policy config keys:
//
//	max_file_lines: int (default 800)
//	layers:         [{from: path prefix, deny: import substring}]
//	require_header: regex matched against the first lines of each file
type ConstraintGate struct{}

// NewConstraintGate creates the constraint verification gate.
func NewConstraintGate() *ConstraintGate {
	return &ConstraintGate{}
}

func (g *ConstraintGate) ID() gate.ID  { return gate.ConstraintVerification }
func (g *ConstraintGate) Name() string { return "Constraint Verification" }

// Run checks every file in scope against the configured constraints.
func (g *ConstraintGate) Run(ctx context.Context, rc *gate.RunContext) (gate.RawOutcome, error) {
	cfg := rc.Config(gate.ConstraintVerification)

	maxLines := cfgInt(cfg, "max_file_lines", 800)

	var layers []layerRule
	for _, m := range cfgMaps(cfg, "layers") {
		from := cfgString(m, "from", "")
		deny := cfgString(m, "deny", "")
		if from == "" || deny == "" {
			continue
		}
		layers = append(layers, layerRule{from: from, deny: deny})
	}

	var headerRe *regexp.Regexp
	if h := cfgString(cfg, "require_header", ""); h != "" {
		re, err := regexp.Compile(h)
		if err != nil {
			return gate.RawOutcome{
				"pass":    false,
				"score":   0,
				"summary": fmt.Sprintf("invalid require_header pattern: %v", err),
			}, nil
		}
		headerRe = re
	}

	var issues []gate.Finding
	for _, f := range rc.Files {
		lines := strings.Split(f.Content, "\n")

		if maxLines > 0 && len(lines) > maxLines {
			issues = append(issues, gate.Finding{
				RuleID:   "max-file-lines",
				Message:  fmt.Sprintf("file has %d lines, limit is %d", len(lines), maxLines),
				File:     f.Path,
				Severity: gate.SeverityWarning,
			})
		}

		if headerRe != nil && !matchesHeader(headerRe, lines) {
			issues = append(issues, gate.Finding{
				RuleID:   "require-header",
				Message:  "required file header missing",
				File:     f.Path,
				Line:     1,
				Severity: gate.SeverityError,
			})
		}

		for _, rule := range layers {
			if !strings.HasPrefix(f.Path, rule.from) {
				continue
			}
			for n, line := range lines {
				m := importRe.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				if strings.Contains(m[1], rule.deny) {
					issues = append(issues, gate.Finding{
						RuleID:   "layer-violation",
						Message:  fmt.Sprintf("%s must not import %s", rule.from, rule.deny),
						File:     f.Path,
						Line:     n + 1,
						Severity: gate.SeverityError,
					})
				}
			}
		}
	}

	score, errors, _ := scoreFindings(issues)

	summary := fmt.Sprintf("%d files satisfy all constraints", len(rc.Files))
	if len(issues) > 0 {
		summary = fmt.Sprintf("%d constraint violations", len(issues))
	}

	// This gate reports under different keys than pattern-compliance on
	// purpose; the aggregator owns normalization.
	return gate.RawOutcome{
		"pass":    errors == 0,
		"score":   float64(score),
		"summary": summary,
		"issues":  issues,
	}, nil
}

// matchesHeader reports whether the header pattern matches within the
// first few lines of the file.
func matchesHeader(re *regexp.Regexp, lines []string) bool {
	limit := 5
	if len(lines) < limit {
		limit = len(lines)
	}
	return re.MatchString(strings.Join(lines[:limit], "\n"))
}
