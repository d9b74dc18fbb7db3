package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/talgya/mini-colony/internal/catalog"
	"github.com/talgya/mini-colony/internal/config"
	"github.com/talgya/mini-colony/internal/economy"
)

var reactionsCmd = &cobra.Command{
	Use:   "reactions",
	Short: "List the reaction catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return printReactions(cmd, cfg)
	},
}

func printReactions(cmd *cobra.Command, cfg *config.Config) error {
	reactions, err := catalog.Load(cfg.Reactions)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tWHERE\tTICKS\tINPUTS\tOUTPUTS")
	for _, id := range reactions.Order {
		r, _ := reactions.Get(id)
		where := r.Workshop
		if where == "" {
			where = "site"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Kind, where, r.TimeTicks, stacks(r.Inputs), stacks(r.Outputs))
	}
	return tw.Flush()
}

func stacks(ss []economy.Stack) string {
	if len(ss) == 0 {
		return "-"
	}
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = fmt.Sprintf("%s x%d", s.Good, s.Count)
	}
	return strings.Join(parts, ", ")
}
