package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/spendwise/internal/config"
	"github.com/cleared-dev/spendwise/internal/rules"
)

// RulesFileName is the keyword table written by init.
const RulesFileName = "rules.yaml"

func newInitCommand() *cobra.Command {
	var force bool
	var provider string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter config and keyword table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir, provider, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized spendwise config at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	cmd.Flags().StringVar(&provider, "provider", "none", "LLM provider (openai, none)")

	return cmd
}

func runInit(dir, provider string, force bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	cfgPath := filepath.Join(dir, config.FileName)
	rulesPath := filepath.Join(dir, RulesFileName)
	if !force {
		for _, p := range []string{cfgPath, rulesPath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", p)
			}
		}
	}

	cfg := config.Default()
	cfg.RulesFile = RulesFileName
	cfg.LLM.Provider = provider
	if provider == "openai" {
		cfg.LLM.APIKey = "${OPENAI_API_KEY}"
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := os.WriteFile(rulesPath, rules.DefaultTableYAML(), 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	return nil
}
