package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/spendwise/internal/analytics"
	"github.com/cleared-dev/spendwise/internal/api"
	"github.com/cleared-dev/spendwise/internal/llm"
	"github.com/cleared-dev/spendwise/internal/model"
	"github.com/cleared-dev/spendwise/internal/pipeline"
	"github.com/cleared-dev/spendwise/internal/rules"
)

// FileName is the default configuration file name.
const FileName = "spendwise.yaml"

// Config represents the top-level spendwise.yaml configuration.
type Config struct {
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Subscriptions SubscriptionConfig `yaml:"subscriptions"`
	Anomalies     AnomalyConfig      `yaml:"anomalies"`
	WhatIf        WhatIfConfig       `yaml:"what_if"`
	RulesFile     string             `yaml:"rules_file,omitempty"`
	LLM           LLMConfig          `yaml:"llm"`
	Server        ServerConfig       `yaml:"server"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// PipelineConfig controls stage execution.
type PipelineConfig struct {
	StepDelay         time.Duration `yaml:"step_delay"`
	ClassifierWorkers int           `yaml:"classifier_workers"`
	Period            model.Period  `yaml:"period"`
	WindowDays        int           `yaml:"window_days"` // 0 uses the period profile
}

// SubscriptionConfig tunes recurring-charge detection.
type SubscriptionConfig struct {
	MinOccurrences  int      `yaml:"min_occurrences"`
	CadenceMinDays  int      `yaml:"cadence_min_days"`
	CadenceMaxDays  int      `yaml:"cadence_max_days"`
	GapFallback     bool     `yaml:"gap_fallback"`
	FallbackMinDays int      `yaml:"fallback_min_days"`
	FallbackMaxDays int      `yaml:"fallback_max_days"`
	MaxCV           float64  `yaml:"max_cv"`
	AllowList       []string `yaml:"allow_list"`
}

// AnomalyConfig tunes spending-spike detection.
type AnomalyConfig struct {
	WindowDays int     `yaml:"window_days"`
	Weeks      int     `yaml:"weeks"`
	Multiplier float64 `yaml:"multiplier"`
}

// WindowProfile holds the what-if constants for one period.
type WindowProfile struct {
	WindowDays      int     `yaml:"window_days"`
	SparseThreshold float64 `yaml:"sparse_threshold"`
	MinSaving       float64 `yaml:"min_saving"`
}

// WhatIfConfig tunes the savings projection.
type WhatIfConfig struct {
	CutPercent float64       `yaml:"cut_percent"`
	Week       WindowProfile `yaml:"week"`
	Month      WindowProfile `yaml:"month"`
}

// LLMConfig selects and hardens the model provider.
type LLMConfig struct {
	Provider        string        `yaml:"provider"` // openai or none
	BaseURL         string        `yaml:"base_url,omitempty"`
	Model           string        `yaml:"model,omitempty"`
	APIKey          string        `yaml:"api_key,omitempty"`
	Timeout         time.Duration `yaml:"timeout"`
	RateLimit       int           `yaml:"rate_limit"` // requests per minute
	MaxRetries      int           `yaml:"max_retries"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit"` // requests per second per client; 0 disables
	Burst          int      `yaml:"burst"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Load reads a spendwise.yaml file from disk. ${VAR} references are
// expanded from the environment and unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.RulesFile != "" && !filepath.IsAbs(cfg.RulesFile) {
		cfg.RulesFile = filepath.Join(filepath.Dir(path), cfg.RulesFile)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with the standard policy and no model provider.
func Default() *Config {
	subs := analytics.DefaultSubscriptionPolicy()
	anom := analytics.DefaultAnomalyPolicy()
	wi := analytics.DefaultWhatIfPolicy()

	return &Config{
		Pipeline: PipelineConfig{
			ClassifierWorkers: 4,
			Period:            model.PeriodMonth,
		},
		Subscriptions: SubscriptionConfig{
			MinOccurrences:  subs.MinOccurrences,
			CadenceMinDays:  subs.CadenceMinDays,
			CadenceMaxDays:  subs.CadenceMaxDays,
			GapFallback:     subs.GapFallback,
			FallbackMinDays: subs.FallbackMinDays,
			FallbackMaxDays: subs.FallbackMaxDays,
			MaxCV:           subs.MaxCV,
			AllowList:       append([]string(nil), subs.AllowList...),
		},
		Anomalies: AnomalyConfig{
			WindowDays: anom.WindowDays,
			Weeks:      anom.Weeks,
			Multiplier: anom.Multiplier,
		},
		WhatIf: WhatIfConfig{
			CutPercent: wi.CutPercent,
			Week:       WindowProfile(wi.Week),
			Month:      WindowProfile(wi.Month),
		},
		LLM: LLMConfig{
			Provider:        "none",
			Timeout:         30 * time.Second,
			RateLimit:       60,
			MaxRetries:      2,
			CacheTTL:        time.Hour,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			RateLimit:      5,
			Burst:          10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.Period != "" && !c.Pipeline.Period.Valid() {
		return fmt.Errorf("pipeline.period must be week or month, got %q", c.Pipeline.Period)
	}
	if c.Pipeline.ClassifierWorkers < 0 {
		return fmt.Errorf("pipeline.classifier_workers must not be negative")
	}
	if c.Pipeline.WindowDays < 0 {
		return fmt.Errorf("pipeline.window_days must not be negative")
	}
	if c.Subscriptions.CadenceMinDays > c.Subscriptions.CadenceMaxDays {
		return fmt.Errorf("subscriptions.cadence_min_days exceeds cadence_max_days")
	}
	if c.Anomalies.Weeks <= 0 || c.Anomalies.WindowDays <= 0 {
		return fmt.Errorf("anomalies.window_days and anomalies.weeks must be positive")
	}
	if c.WhatIf.CutPercent <= 0 || c.WhatIf.CutPercent > 100 {
		return fmt.Errorf("what_if.cut_percent must be in (0, 100], got %v", c.WhatIf.CutPercent)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// PipelineSettings converts the policy sections into a pipeline.Config.
func (c *Config) PipelineSettings() pipeline.Config {
	s := c.Subscriptions
	return pipeline.Config{
		Workers:    c.Pipeline.ClassifierWorkers,
		StepDelay:  c.Pipeline.StepDelay,
		Period:     c.Pipeline.Period,
		WindowDays: c.Pipeline.WindowDays,
		Subscriptions: analytics.SubscriptionPolicy{
			MinOccurrences:  s.MinOccurrences,
			CadenceMinDays:  s.CadenceMinDays,
			CadenceMaxDays:  s.CadenceMaxDays,
			GapFallback:     s.GapFallback,
			FallbackMinDays: s.FallbackMinDays,
			FallbackMaxDays: s.FallbackMaxDays,
			MaxCV:           s.MaxCV,
			AllowList:       s.AllowList,
		},
		Anomalies: analytics.AnomalyPolicy(c.Anomalies),
		WhatIf: analytics.WhatIfPolicy{
			CutPercent: c.WhatIf.CutPercent,
			Week:       analytics.WindowProfile(c.WhatIf.Week),
			Month:      analytics.WindowProfile(c.WhatIf.Month),
		},
	}
}

// APISettings converts the server section into an api.Config.
func (c *Config) APISettings() api.Config {
	return api.Config(c.Server)
}

// LLMSettings converts the llm section into an llm.Config.
func (c *Config) LLMSettings() llm.Config {
	return llm.Config(c.LLM)
}

// RulesTable loads the keyword table named by rules_file, or the
// embedded default when unset.
func (c *Config) RulesTable() (rules.Table, error) {
	if c.RulesFile == "" {
		return rules.DefaultTable(), nil
	}
	return rules.LoadTable(c.RulesFile)
}
