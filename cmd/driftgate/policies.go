package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ruizrica/driftgate/internal/config"
	"github.com/ruizrica/driftgate/internal/gate"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List the built-in policy presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		presets := config.PresetPolicies()
		for _, id := range config.PresetIDs() {
			p := presets[id]
			fmt.Fprintf(out, "%s: %s\n", p.ID, p.Name)
			fmt.Fprintf(out, "  mode: %s  min score: %g\n", p.Aggregation.Mode, p.Aggregation.EffectiveMinScore())
			if len(p.Aggregation.RequiredGates) > 0 {
				fmt.Fprintf(out, "  required: %s\n", joinIDs(p.Aggregation.RequiredGates))
			}
			ids := make([]gate.ID, 0, len(p.GateConfigs))
			for id := range p.GateConfigs {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			fmt.Fprintf(out, "  gates: %s\n", joinIDs(ids))
		}
		return nil
	},
}

func joinIDs(ids []gate.ID) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += ", "
		}
		s += string(id)
	}
	return s
}
