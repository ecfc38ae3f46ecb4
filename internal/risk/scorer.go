// Package risk scores incoming transactions for spending anomalies.
package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/normalize"
)

const (
	actionBlock   = "BLOCK transaction and notify user immediately"
	actionFlag    = "FLAG for review - send verification notification to user"
	actionMonitor = "MONITOR - log as suspicious but allow transaction"
	actionApprove = "APPROVE - normal transaction"
)

// Contribution is a score adjustment from a signal outside this package.
type Contribution struct {
	Score  float64
	Factor string
}

// Recurring describes a known recurring charge for the candidate's merchant.
type Recurring struct {
	Kind   model.RecurrenceKind
	Amount decimal.Decimal
}

// Signals carries optional context for Score.
type Signals struct {
	Recurring     *Recurring
	Contributions []Contribution
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithLogger sets the logger used for per-transaction debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scorer) { s.log = l }
}

// Scorer computes additive risk scores. It holds only read-only configuration.
type Scorer struct {
	cfg           Config
	exclusions    normalize.KeywordSet
	discretionary map[string]bool
	thresholds    map[string]decimal.Decimal
	tiers         []Tier
	recurringTol  decimal.Decimal
	log           zerolog.Logger
}

// New creates a Scorer from cfg.
func New(cfg Config, opts ...Option) *Scorer {
	s := &Scorer{
		cfg:           cfg,
		exclusions:    normalize.NewStemmedKeywordSet(cfg.ExclusionKeywords),
		discretionary: make(map[string]bool, len(cfg.DiscretionaryCategories)),
		thresholds:    make(map[string]decimal.Decimal, len(cfg.Thresholds)),
		recurringTol:  decimal.NewFromFloat(cfg.RecurringTolerance),
		log:           zerolog.Nop(),
	}
	for _, c := range cfg.DiscretionaryCategories {
		s.discretionary[categoryKey(c)] = true
	}
	for c, t := range cfg.Thresholds {
		s.thresholds[categoryKey(c)] = t
	}
	s.tiers = append(s.tiers, cfg.Tiers...)
	sort.SliceStable(s.tiers, func(i, j int) bool { return s.tiers[i].Multiple > s.tiers[j].Multiple })
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score assesses candidate under category. signals may be nil.
func (s *Scorer) Score(candidate model.NormalizedTransaction, category string, signals *Signals) model.RiskAssessment {
	a := model.RiskAssessment{TransactionID: candidate.Raw.ID, Factors: []string{}}

	if kw, ok := s.exclusions.Match(candidate.Merchant, candidate.Description); ok {
		s.log.Debug().Str("id", candidate.Raw.ID).Str("keyword", kw).Msg("risk excluded")
		return s.finish(a)
	}

	if !s.knownRecurring(candidate, signals) {
		score, factor := s.amountSignal(candidate, category)
		if score > 0 {
			a.Score += score
			a.Factors = append(a.Factors, factor)
		}
	}

	if signals != nil {
		for _, c := range signals.Contributions {
			a.Score += c.Score
			if c.Factor != "" {
				a.Factors = append(a.Factors, c.Factor)
			} else if c.Score != 0 {
				a.Factors = append(a.Factors, fmt.Sprintf("external signal %+.0f", c.Score))
			}
		}
	}

	return s.finish(a)
}

// Input is one transaction to score in a batch.
type Input struct {
	Candidate model.NormalizedTransaction
	Category  string
	Signals   *Signals
}

// ScoreAll scores a batch. An empty batch yields an empty result.
func (s *Scorer) ScoreAll(inputs []Input) []model.RiskAssessment {
	out := make([]model.RiskAssessment, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, s.Score(in.Candidate, in.Category, in.Signals))
	}
	return out
}

// LevelFor maps an accumulated score to its level and recommended action.
func (s *Scorer) LevelFor(score float64) (model.RiskLevel, string) {
	switch {
	case score >= s.cfg.Levels.High:
		return model.RiskHigh, actionBlock
	case score >= s.cfg.Levels.Medium:
		return model.RiskMedium, actionFlag
	case score >= s.cfg.Levels.LowMedium:
		return model.RiskLowMedium, actionMonitor
	}
	return model.RiskLow, actionApprove
}

// amountSignal applies the category gate and threshold tiers to outflows.
func (s *Scorer) amountSignal(candidate model.NormalizedTransaction, category string) (float64, string) {
	if candidate.Inflow {
		return 0, ""
	}
	key := categoryKey(category)
	if !s.discretionary[key] {
		return 0, ""
	}
	threshold, ok := s.thresholds[key]
	if !ok {
		threshold = s.cfg.DefaultThreshold
	}
	for _, tier := range s.tiers {
		multiple := decimal.NewFromFloat(tier.Multiple)
		if !candidate.Amount.GreaterThan(threshold.Mul(multiple)) {
			continue
		}
		factor := fmt.Sprintf("amount $%s is more than %sx the %s threshold of $%s",
			candidate.Amount.StringFixed(2), multiple.String(), key, threshold.StringFixed(2))
		if tier.Severity != "" {
			factor += " (" + tier.Severity + " severity)"
		}
		return tier.Score, factor
	}
	return 0, ""
}

// knownRecurring reports whether candidate matches a known recurring charge
// without exceeding it by more than the tolerance.
func (s *Scorer) knownRecurring(candidate model.NormalizedTransaction, signals *Signals) bool {
	if signals == nil || signals.Recurring == nil || !signals.Recurring.Amount.IsPositive() {
		return false
	}
	limit := signals.Recurring.Amount.Mul(decimal.NewFromInt(1).Add(s.recurringTol))
	return candidate.Amount.LessThanOrEqual(limit)
}

func (s *Scorer) finish(a model.RiskAssessment) model.RiskAssessment {
	if a.Score < 0 {
		a.Score = 0
	}
	if a.Score > 100 {
		a.Score = 100
	}
	a.Level, a.RecommendedAction = s.LevelFor(a.Score)
	a.IsAnomaly = a.Level != model.RiskLow
	if a.IsAnomaly && len(a.Factors) == 0 {
		a.Factors = append(a.Factors, fmt.Sprintf("accumulated score %.0f", a.Score))
	}
	s.log.Debug().
		Str("id", a.TransactionID).
		Float64("score", a.Score).
		Str("level", string(a.Level)).
		Msg("risk scored")
	return a
}

func categoryKey(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
