package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/recurrence"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Run.Parallelism = 8
	cfg.Normalize.Aliases["wholefds"] = "whole foods"
	cfg.Risk.Thresholds["travel"] = decimal.NewFromInt(1000)

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, got.Run.Parallelism)
	assert.Equal(t, "whole foods", got.Normalize.Aliases["wholefds"])
	assert.Equal(t, cfg.Normalize.DateLayouts, got.Normalize.DateLayouts)
	assert.Equal(t, 1, got.Matching.DateToleranceDays)
	assert.True(t, got.Matching.AmountTolerance.Equal(decimal.RequireFromString("0.01")))
	assert.InDelta(t, 0.80, got.Matching.SimilarityThreshold, 0.001)
	assert.Equal(t, cfg.Recurrence.Bands, got.Recurrence.Bands)
	assert.Equal(t, cfg.Recurrence.BillKeywords, got.Recurrence.BillKeywords)
	assert.Equal(t, cfg.Recurrence.Categories, got.Recurrence.Categories)
	assert.True(t, got.Risk.Thresholds["shopping"].Equal(decimal.NewFromInt(400)))
	assert.True(t, got.Risk.Thresholds["travel"].Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, cfg.Risk.Tiers, got.Risk.Tiers)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 4, cfg.Run.Parallelism)
	assert.Equal(t, "info", cfg.Run.LogLevel)
	assert.Equal(t, "amazon", cfg.Normalize.Aliases["amzn mktp"])
	assert.Equal(t, 365, cfg.Recurrence.WindowDays)
	assert.InDelta(t, 25, cfg.Recurrence.Bands.Monthly.Min, 0.001)
	assert.InDelta(t, 35, cfg.Recurrence.Bands.Monthly.Max, 0.001)
	assert.InDelta(t, 0.10, cfg.Recurrence.BillAmountTolerance, 0.001)
	assert.InDelta(t, 0.05, cfg.Recurrence.SubscriptionAmountTolerance, 0.001)
	assert.InDelta(t, 0.95, cfg.Recurrence.Confidence.Keyword, 0.001)
	assert.True(t, cfg.Risk.DefaultThreshold.Equal(decimal.NewFromInt(300)))
	assert.InDelta(t, 75, cfg.Risk.Levels.High, 0.001)
	assert.Contains(t, cfg.Risk.ExclusionKeywords, "payroll")
	require.NoError(t, cfg.Validate())
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := "matching:\n  date_tolerance_days: 2\nrisk:\n  default_threshold: \"250\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Matching.DateToleranceDays)
	assert.InDelta(t, 0.80, cfg.Matching.SimilarityThreshold, 0.001)
	assert.True(t, cfg.Risk.DefaultThreshold.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, 365, cfg.Recurrence.WindowDays)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"parallelism", func(c *Config) { c.Run.Parallelism = 0 }},
		{"log level", func(c *Config) { c.Run.LogLevel = "loud" }},
		{"negative date tolerance", func(c *Config) { c.Matching.DateToleranceDays = -1 }},
		{"negative amount tolerance", func(c *Config) { c.Matching.AmountTolerance = decimal.NewFromInt(-1) }},
		{"similarity above one", func(c *Config) { c.Matching.SimilarityThreshold = 1.5 }},
		{"no date layouts", func(c *Config) { c.Normalize.DateLayouts = nil }},
		{"inverted band", func(c *Config) { c.Recurrence.Bands.Monthly = recurrenceBand(35, 25) }},
		{"window", func(c *Config) { c.Recurrence.WindowDays = 0 }},
		{"negative tolerance", func(c *Config) { c.Recurrence.BillAmountTolerance = -0.1 }},
		{"zero threshold", func(c *Config) { c.Risk.Thresholds["dining"] = decimal.Zero }},
		{"levels out of order", func(c *Config) { c.Risk.Levels.Medium = 90 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "date_tolerance_days: 1")
	assert.Contains(t, contents, "similarity_threshold: 0.8")
	assert.Contains(t, contents, "bill_keywords:")
	assert.Contains(t, contents, "exclusion_keywords:")
	assert.Contains(t, contents, "parallelism: 4")
}

func recurrenceBand(lo, hi float64) recurrence.Band {
	return recurrence.Band{Min: lo, Max: hi}
}
