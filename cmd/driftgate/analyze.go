package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ruizrica/driftgate/internal/config"
	"github.com/ruizrica/driftgate/internal/engine"
	"github.com/ruizrica/driftgate/internal/gate"
	"github.com/ruizrica/driftgate/internal/gate/builtin"
	"github.com/ruizrica/driftgate/internal/logging"
	"github.com/ruizrica/driftgate/internal/snapshot"
)

var (
	analyzePath    string
	analyzePolicy  string
	analyzeProject string
	failOn         string
	threshold      float64
	incremental    bool
	timeoutSecs    int
	outputJSON     string
	outputSARIF    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run quality gates against a directory",
	Long: `Analyze a directory (or its uncommitted changes) under a policy.

Examples:
  # Analyze a project under the standard policy
  driftgate analyze --path . --policy standard

  # Only the uncommitted changes, strict tier, SARIF for CI upload
  driftgate analyze --path . --policy strict --incremental --output-sarif gates.sarif

  # Custom policy file with a raised threshold
  driftgate analyze --path ./svc --policy team-policy.yaml --threshold 85`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzePath, "path", ".", "directory to analyze")
	analyzeCmd.Flags().StringVar(&analyzePolicy, "policy", config.PolicyStandard, "policy preset (strict|standard|lenient) or policy file")
	analyzeCmd.Flags().StringVar(&analyzeProject, "project", "", "project key for snapshot history (default: directory name)")
	analyzeCmd.Flags().StringVar(&failOn, "fail-on", "error", "verdict level that fails the run (error|warning|none)")
	analyzeCmd.Flags().Float64Var(&threshold, "threshold", 0, "override the policy min score (0-100)")
	analyzeCmd.Flags().BoolVar(&incremental, "incremental", false, "analyze only uncommitted changes (requires a git repository)")
	analyzeCmd.Flags().IntVar(&timeoutSecs, "timeout", 0, "per-gate timeout in seconds (0 uses the config value)")
	analyzeCmd.Flags().StringVar(&outputJSON, "output-json", "", "write the run report as JSON to this file")
	analyzeCmd.Flags().StringVar(&outputSARIF, "output-sarif", "", "write findings as SARIF to this file")
}

// projectKeyPattern strips characters that are unsafe in snapshot keys.
var projectKeyPattern = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	defer logger.Sync() //nolint:errcheck

	switch failOn {
	case "error", "warning", "none":
	default:
		return fmt.Errorf("%w: invalid --fail-on %q (error|warning|none)", errUsage, failOn)
	}

	policy, err := config.ResolvePolicy(analyzePolicy)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if cmd.Flags().Changed("threshold") {
		if threshold < 0 || threshold > 100 {
			return fmt.Errorf("%w: --threshold %v out of range [0,100]", errUsage, threshold)
		}
		policy.Aggregation.MinScore = engine.MinScore(threshold)
	}

	root, err := filepath.Abs(analyzePath)
	if err != nil {
		return fmt.Errorf("%w: invalid --path %q: %v", errUsage, analyzePath, err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: --path %q is not a directory", errUsage, analyzePath)
	}

	files, err := collectFiles(root, incremental, logger)
	if err != nil {
		return err
	}

	projectKey := analyzeProject
	if projectKey == "" {
		projectKey = projectKeyPattern.ReplaceAllString(filepath.Base(root), "-")
	}
	if snapshot.ValidateProjectKey(projectKey) != nil {
		return fmt.Errorf("%w: invalid project key %q", errUsage, projectKey)
	}

	store, err := snapshot.NewFileStore(cfg.Snapshots.Dir, logger)
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}

	timeout := cfg.Gates.Timeout.Duration()
	if timeoutSecs > 0 {
		timeout = time.Duration(timeoutSecs) * time.Second
	}

	registry := gate.NewRegistry(builtin.Factories(), logger)
	orch, err := engine.NewOrchestrator(engine.Options{
		Registry:    registry,
		Store:       store,
		GateTimeout: timeout,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	rc := &gate.RunContext{
		ProjectRoot: root,
		ProjectKey:  projectKey,
		Files:       files,
	}

	report, err := orch.Run(cmd.Context(), rc, policy)
	if err != nil {
		// Only usage errors escape the engine.
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	printReport(cmd, report)

	if outputJSON != "" {
		if err := writeJSON(outputJSON, report); err != nil {
			return err
		}
	}
	if outputSARIF != "" {
		if err := writeSARIF(outputSARIF, report); err != nil {
			return err
		}
	}

	switch failOn {
	case "none":
		return nil
	case "warning":
		if !report.Overall.Passed || report.Overall.Status == gate.StatusWarned {
			return errVerdictFailed
		}
	default:
		if !report.Overall.Passed {
			return errVerdictFailed
		}
	}
	return nil
}

// printReport writes the human-readable run summary to stdout.
func printReport(cmd *cobra.Command, report *engine.RunReport) {
	out := cmd.OutOrStdout()

	ids := make([]gate.ID, 0, len(report.GateResults))
	for id := range report.GateResults {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fmt.Fprintf(out, "Policy: %s\n", report.PolicyID)
	for _, id := range ids {
		r := report.GateResults[id]
		fmt.Fprintf(out, "  [%s] %-24s score %3d  %s\n",
			strings.ToUpper(string(r.Status)), r.GateName, r.Score, r.Summary)
		for _, f := range r.Findings {
			loc := f.File
			if f.Line > 0 {
				loc = fmt.Sprintf("%s:%d", f.File, f.Line)
			}
			fmt.Fprintf(out, "      %s %s (%s)\n", loc, f.Message, f.Severity)
		}
	}
	for _, d := range report.Diagnostics {
		fmt.Fprintf(out, "  gate %s unavailable: %s\n", d.GateID, d.Reason)
	}
	fmt.Fprintf(out, "Overall: %s (score %d) - %s\n",
		strings.ToUpper(string(report.Overall.Status)), report.Overall.Score, report.Overall.Summary)
}

// writeJSON writes the canonical run report.
func writeJSON(path string, report *engine.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func writeSARIF(path string, report *engine.RunReport) error {
	data, err := json.MarshalIndent(sarifFromReport(report), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sarif: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing sarif: %w", err)
	}
	return nil
}
