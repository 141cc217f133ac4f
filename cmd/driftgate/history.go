package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ruizrica/driftgate/internal/config"
	"github.com/ruizrica/driftgate/internal/gate"
	"github.com/ruizrica/driftgate/internal/logging"
	"github.com/ruizrica/driftgate/internal/snapshot"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <project-key>",
	Short: "Show recent snapshots for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		logger, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		defer logger.Sync() //nolint:errcheck

		store, err := snapshot.NewFileStore(cfg.Snapshots.Dir, logger)
		if err != nil {
			return fmt.Errorf("opening snapshot store: %w", err)
		}

		snaps, err := store.List(cmd.Context(), args[0], historyLimit)
		if err != nil {
			if errors.Is(err, snapshot.ErrInvalidProjectKey) {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			return err
		}
		if len(snaps) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no snapshots for project %s\n", args[0])
			return nil
		}

		out := cmd.OutOrStdout()
		for _, s := range snaps {
			verdict := "FAILED"
			if s.Overall.Passed {
				verdict = "PASSED"
			}
			fmt.Fprintf(out, "%s  %s  %-7s score %3d  policy %s\n",
				s.CreatedAt.Format("2006-01-02 15:04:05"), s.ID, verdict, s.Overall.Score, s.PolicyID)
			ids := make([]gate.ID, 0, len(s.GateResults))
			for id := range s.GateResults {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			for _, id := range ids {
				r := s.GateResults[id]
				fmt.Fprintf(out, "    %-24s %-7s score %3d\n", id, r.Status, r.Score)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "maximum number of snapshots to show")
}
