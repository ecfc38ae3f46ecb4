package risk

import "github.com/shopspring/decimal"

// Tier awards Score when an amount exceeds Multiple times the category threshold.
type Tier struct {
	Multiple float64 `yaml:"multiple"`
	Score    float64 `yaml:"score"`
	Severity string  `yaml:"severity,omitempty"`
}

// Levels are the lower bounds of each risk level on the accumulated score.
type Levels struct {
	High      float64 `yaml:"high"`
	Medium    float64 `yaml:"medium"`
	LowMedium float64 `yaml:"low_medium"`
}

// Config holds the exclusion vocabulary, category gate and thresholds.
type Config struct {
	ExclusionKeywords       []string                   `yaml:"exclusion_keywords"`
	DiscretionaryCategories []string                   `yaml:"discretionary_categories"`
	Thresholds              map[string]decimal.Decimal `yaml:"thresholds"`
	DefaultThreshold        decimal.Decimal            `yaml:"default_threshold"`
	Tiers                   []Tier                     `yaml:"tiers"`
	Levels                  Levels                     `yaml:"levels"`
	RecurringTolerance      float64                    `yaml:"recurring_tolerance"`
}

// DefaultConfig returns the built-in exclusion list and threshold table.
func DefaultConfig() Config {
	return Config{
		ExclusionKeywords: []string{
			"payroll", "salary", "deposit", "income", "wages",
			"rent", "mortgage", "lease",
			"insurance", "premium",
			"tuition", "education",
			"tax", "irs",
			"loan", "credit card payment",
			"transfer", "savings",
		},
		DiscretionaryCategories: []string{"dining", "entertainment", "shopping", "transportation"},
		Thresholds: map[string]decimal.Decimal{
			"dining":         decimal.NewFromInt(150),
			"transportation": decimal.NewFromInt(200),
			"entertainment":  decimal.NewFromInt(150),
			"shopping":       decimal.NewFromInt(400),
		},
		DefaultThreshold: decimal.NewFromInt(300),
		Tiers: []Tier{
			{Multiple: 3, Score: 95, Severity: "high"},
			{Multiple: 2.5, Score: 80},
			{Multiple: 2, Score: 60},
		},
		Levels: Levels{
			High:      75,
			Medium:    50,
			LowMedium: 30,
		},
		RecurringTolerance: 0.10,
	}
}
