package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/recon/internal/dedup"
	"github.com/cleared-dev/recon/internal/logger"
	"github.com/cleared-dev/recon/internal/normalize"
	"github.com/cleared-dev/recon/internal/recurrence"
	"github.com/cleared-dev/recon/internal/risk"
)

// FileName is the default config file name.
const FileName = "recon.yaml"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config represents the top-level recon.yaml configuration.
type Config struct {
	Run        RunConfig         `yaml:"run"`
	Normalize  normalize.Config  `yaml:"normalize"`
	Matching   dedup.Config      `yaml:"matching"`
	Recurrence recurrence.Config `yaml:"recurrence"`
	Risk       risk.Config       `yaml:"risk"`
}

// RunConfig controls the orchestration layer.
type RunConfig struct {
	Parallelism int    `yaml:"parallelism"`
	LogLevel    string `yaml:"log_level"`
}

// Load reads a recon.yaml file from disk. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
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

// Default returns a Config with the built-in vocabularies and tolerances.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Parallelism: 4,
			LogLevel:    "info",
		},
		Normalize:  normalize.DefaultConfig(),
		Matching:   dedup.DefaultConfig(),
		Recurrence: recurrence.DefaultConfig(),
		Risk:       risk.DefaultConfig(),
	}
}

// Validate checks the tolerances and bands for values the engine cannot use.
func (c *Config) Validate() error {
	if c.Run.Parallelism < 1 {
		return fmt.Errorf("%w: run.parallelism must be at least 1", ErrInvalid)
	}
	if _, err := logger.ParseLevel(c.Run.LogLevel); err != nil {
		return fmt.Errorf("%w: run.log_level: %v", ErrInvalid, err)
	}
	if c.Matching.DateToleranceDays < 0 {
		return fmt.Errorf("%w: matching.date_tolerance_days is negative", ErrInvalid)
	}
	if c.Matching.AmountTolerance.IsNegative() {
		return fmt.Errorf("%w: matching.amount_tolerance is negative", ErrInvalid)
	}
	if c.Matching.SimilarityThreshold <= 0 || c.Matching.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: matching.similarity_threshold must be in (0, 1]", ErrInvalid)
	}
	if len(c.Normalize.DateLayouts) == 0 {
		return fmt.Errorf("%w: normalize.date_layouts is empty", ErrInvalid)
	}

	bands := map[string]recurrence.Band{
		"weekly":    c.Recurrence.Bands.Weekly,
		"monthly":   c.Recurrence.Bands.Monthly,
		"quarterly": c.Recurrence.Bands.Quarterly,
		"yearly":    c.Recurrence.Bands.Yearly,
	}
	for name, b := range bands {
		if b.Min <= 0 || b.Max < b.Min {
			return fmt.Errorf("%w: recurrence.bands.%s must satisfy 0 < min <= max", ErrInvalid, name)
		}
	}
	if c.Recurrence.WindowDays < 1 {
		return fmt.Errorf("%w: recurrence.window_days must be positive", ErrInvalid)
	}
	if c.Recurrence.BillAmountTolerance < 0 || c.Recurrence.SubscriptionAmountTolerance < 0 {
		return fmt.Errorf("%w: recurrence amount tolerances are negative", ErrInvalid)
	}

	if !c.Risk.DefaultThreshold.IsPositive() {
		return fmt.Errorf("%w: risk.default_threshold must be positive", ErrInvalid)
	}
	for cat, t := range c.Risk.Thresholds {
		if !t.IsPositive() {
			return fmt.Errorf("%w: risk.thresholds.%s must be positive", ErrInvalid, cat)
		}
	}
	l := c.Risk.Levels
	if !(l.LowMedium <= l.Medium && l.Medium <= l.High) {
		return fmt.Errorf("%w: risk.levels must satisfy low_medium <= medium <= high", ErrInvalid)
	}
	return nil
}
