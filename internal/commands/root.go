package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cleared-dev/spendwise/internal/buildinfo"
	"github.com/cleared-dev/spendwise/internal/config"
	"github.com/cleared-dev/spendwise/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. SPENDWISE_LLM_API_KEY.
const EnvPrefix = "SPENDWISE"

// overrideKeys are config keys that flags and environment variables may set.
var overrideKeys = []string{
	"logging.level",
	"logging.format",
	"llm.provider",
	"llm.base_url",
	"llm.model",
	"llm.api_key",
	"server.addr",
	"rules_file",
}

// app is the state shared by subcommands after the root pre-run.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	cfgPath string
	log     *slog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:     "spendwise",
		Short:   "Transaction insights from a bank statement",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./"+config.FileName+" if present)")
	pf.String("env-file", ".env", "dotenv file loaded before reading the environment")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	_ = a.v.BindPFlag("config", pf.Lookup("config"))
	_ = a.v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", pf.Lookup("log-format"))

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newAnalyzeCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newRulesCommand(a))

	return rootCmd
}

// load reads .env, the config file and SPENDWISE_* overrides, then sets up logging.
func (a *app) load(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	cfg, path, err := loadConfig(a.v.GetString("config"))
	if err != nil {
		return err
	}
	a.applyOverrides(cfg)
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a.cfg = cfg
	a.cfgPath = path
	a.log = logging.New(cfg.Logging, cmd.ErrOrStderr())
	slog.SetDefault(a.log)
	return nil
}

func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		if _, err := os.Stat(config.FileName); err != nil {
			return config.Default(), "", nil
		}
		path = config.FileName
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// applyOverrides copies explicitly set flags and environment variables over cfg.
func (a *app) applyOverrides(cfg *config.Config) {
	targets := map[string]*string{
		"logging.level":  &cfg.Logging.Level,
		"logging.format": &cfg.Logging.Format,
		"llm.provider":   &cfg.LLM.Provider,
		"llm.base_url":   &cfg.LLM.BaseURL,
		"llm.model":      &cfg.LLM.Model,
		"llm.api_key":    &cfg.LLM.APIKey,
		"server.addr":    &cfg.Server.Addr,
		"rules_file":     &cfg.RulesFile,
	}
	for _, key := range overrideKeys {
		if a.v.IsSet(key) {
			*targets[key] = a.v.GetString(key)
		}
	}
}
