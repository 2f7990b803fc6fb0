package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/spendwise/internal/rules"
)

func newRulesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective keyword table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := a.cfg.RulesTable()
			if err != nil {
				return fmt.Errorf("loading rules: %w", err)
			}
			rc, err := rules.NewClassifier(table)
			if err != nil {
				return fmt.Errorf("compiling rules: %w", err)
			}
			data, err := table.Marshal()
			if err != nil {
				return err
			}

			source := "built-in table"
			if a.cfg.RulesFile != "" {
				source = a.cfg.RulesFile
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s: %d keywords\n", source, rc.Patterns())
			_, err = out.Write(data)
			return err
		},
	}
}
