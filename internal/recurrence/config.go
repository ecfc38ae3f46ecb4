package recurrence

import "github.com/cleared-dev/recon/internal/model"

// Band is an inclusive range of mean days between charges.
type Band struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether days falls inside the band.
func (b Band) Contains(days float64) bool {
	return days >= b.Min && days <= b.Max
}

// Bands holds one interval band per frequency class.
type Bands struct {
	Weekly    Band `yaml:"weekly"`
	Monthly   Band `yaml:"monthly"`
	Quarterly Band `yaml:"quarterly"`
	Yearly    Band `yaml:"yearly"`
}

// CategoryRule maps subscription keywords to a category label.
type CategoryRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Confidence holds the confidence assigned to each detection method.
type Confidence struct {
	Keyword        float64 `yaml:"keyword"`
	Strong         float64 `yaml:"strong"`
	Weak           float64 `yaml:"weak"`
	StrongMinCount int     `yaml:"strong_min_count"`
}

// Config holds the classifier vocabularies and tolerances.
type Config struct {
	WindowDays                  int            `yaml:"window_days"`
	BillKeywords                []string       `yaml:"bill_keywords"`
	SubscriptionKeywords        []string       `yaml:"subscription_keywords"`
	Categories                  []CategoryRule `yaml:"categories"`
	DefaultCategory             string         `yaml:"default_category"`
	Bands                       Bands          `yaml:"bands"`
	BillAmountTolerance         float64        `yaml:"bill_amount_tolerance"`
	SubscriptionAmountTolerance float64        `yaml:"subscription_amount_tolerance"`
	Confidence                  Confidence     `yaml:"confidence"`
}

// DefaultConfig returns the built-in vocabularies and bands.
func DefaultConfig() Config {
	return Config{
		WindowDays: 365,
		BillKeywords: []string{
			"rent", "mortgage", "lease",
			"electric", "electricity", "power", "gas bill", "gas company",
			"water", "sewer", "utility", "utilities",
			"internet", "isp", "broadband",
			"phone bill", "mobile", "wireless", "at&t", "verizon", "t-mobile",
			"insurance", "premium",
			"loan payment", "mortgage payment", "credit card payment",
			"hoa", "homeowners association",
		},
		SubscriptionKeywords: []string{
			"subscription", "membership",
			"netflix", "spotify", "hulu", "disney+", "disney plus", "hbo", "paramount+", "peacock",
			"apple music", "youtube premium", "amazon prime", "prime video", "audible",
			"gym", "fitness", "yoga", "peloton",
			"dropbox", "google one", "icloud", "cloud storage",
			"adobe", "microsoft 365", "github", "notion", "linkedin premium", "patreon",
			"annual fee", "monthly fee",
		},
		Categories: []CategoryRule{
			{Category: "Streaming Services", Keywords: []string{"netflix", "hulu", "disney+", "disney plus", "hbo", "paramount+", "peacock", "prime video", "youtube premium"}},
			{Category: "Music Services", Keywords: []string{"spotify", "apple music", "pandora", "tidal", "audible"}},
			{Category: "Health & Fitness", Keywords: []string{"gym", "fitness", "yoga", "peloton"}},
			{Category: "Software & Tools", Keywords: []string{"adobe", "microsoft 365", "dropbox", "google one", "icloud", "github", "notion", "cloud storage"}},
			{Category: "Utilities", Keywords: []string{"electric", "water", "internet", "phone", "utility"}},
			{Category: "Membership", Keywords: []string{"membership", "amazon prime", "costco", "patreon"}},
		},
		DefaultCategory: "Subscriptions",
		Bands: Bands{
			Weekly:    Band{Min: 5, Max: 9},
			Monthly:   Band{Min: 25, Max: 35},
			Quarterly: Band{Min: 85, Max: 95},
			Yearly:    Band{Min: 350, Max: 380},
		},
		BillAmountTolerance:         0.10,
		SubscriptionAmountTolerance: 0.05,
		Confidence: Confidence{
			Keyword:        0.95,
			Strong:         0.90,
			Weak:           0.75,
			StrongMinCount: 3,
		},
	}
}

// BucketInterval maps a mean interval in days to a frequency class.
func (b Bands) BucketInterval(meanDays float64) (model.Frequency, bool) {
	switch {
	case b.Weekly.Contains(meanDays):
		return model.FrequencyWeekly, true
	case b.Monthly.Contains(meanDays):
		return model.FrequencyMonthly, true
	case b.Quarterly.Contains(meanDays):
		return model.FrequencyQuarterly, true
	case b.Yearly.Contains(meanDays):
		return model.FrequencyYearly, true
	}
	return "", false
}
