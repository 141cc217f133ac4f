package builtin

import (
	"context"
	"fmt"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/ruizrica/driftgate/internal/gate"
)

// SecretFinding is one detected secret, stripped of the secret value.
type SecretFinding struct {
	RuleID      string
	Description string
	Line        int
}

// SecretScanner scans one file's content for leaked secrets.
type SecretScanner func(content string) ([]SecretFinding, error)

// SecurityGate scans changed-file contents for leaked credentials using
// the gitleaks ruleset. Any finding fails the gate; secrets never cross
// a security boundary on a warning.
type SecurityGate struct {
	scan SecretScanner
}

// NewSecurityGate creates the security boundary gate with the default
// gitleaks detector. Ruleset compilation failure surfaces as a factory
// error, so the registry records the gate as unavailable instead of
// panicking at first use.
func NewSecurityGate() (gate.Gate, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("building gitleaks detector: %w", err)
	}
	return &SecurityGate{scan: gitleaksScanner(detector)}, nil
}

// NewSecurityGateWithScanner creates the gate with a custom scanner,
// used by tests and callers with project-specific rulesets.
func NewSecurityGateWithScanner(scan SecretScanner) *SecurityGate {
	return &SecurityGate{scan: scan}
}

// gitleaksScanner adapts a gitleaks detector to the SecretScanner
// contract, dropping the matched secret text on the floor.
func gitleaksScanner(detector *detect.Detector) SecretScanner {
	return func(content string) ([]SecretFinding, error) {
		raw := detector.DetectString(content)
		findings := make([]SecretFinding, 0, len(raw))
		for _, f := range raw {
			findings = append(findings, SecretFinding{
				RuleID:      f.RuleID,
				Description: f.Description,
				Line:        f.StartLine,
			})
		}
		return findings, nil
	}
}

func (g *SecurityGate) ID() gate.ID  { return gate.SecurityBoundary }
func (g *SecurityGate) Name() string { return "Security Boundary" }

// Run scans every file in scope. Scanner errors degrade the file to a
// finding rather than aborting the sibling files.
func (g *SecurityGate) Run(ctx context.Context, rc *gate.RunContext) (gate.RawOutcome, error) {
	var findings []gate.Finding
	for _, f := range rc.Files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		secrets, err := g.scan(f.Content)
		if err != nil {
			findings = append(findings, gate.Finding{
				RuleID:   "scan-error",
				Message:  fmt.Sprintf("secret scan failed: %v", err),
				File:     f.Path,
				Severity: gate.SeverityError,
			})
			continue
		}
		for _, s := range secrets {
			findings = append(findings, gate.Finding{
				RuleID:   s.RuleID,
				Message:  s.Description,
				File:     f.Path,
				Line:     s.Line,
				Severity: gate.SeverityCritical,
			})
		}
	}

	if len(findings) > 0 {
		return gate.RawOutcome{
			"passed":   false,
			"score":    0,
			"summary":  fmt.Sprintf("%d potential secrets detected", len(findings)),
			"findings": findings,
		}, nil
	}

	return gate.RawOutcome{
		"passed":  true,
		"score":   100,
		"summary": fmt.Sprintf("no secrets detected in %d files", len(rc.Files)),
	}, nil
}
