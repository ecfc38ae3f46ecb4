// Package recurrence classifies a user's recurring charges into bills and subscriptions.
package recurrence

import (
	"sort"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/normalize"
)

// Status is the three-state outcome of classifying one transaction.
type Status string

const (
	StatusClassified   Status = "classified"
	StatusNotRecurring Status = "not_recurring"
	StatusMalformed    Status = "malformed"
)

// Method records how a classification was reached.
type Method string

const (
	MethodKeyword Method = "keyword"
	MethodPattern Method = "pattern"
)

// Result describes a positive classification.
type Result struct {
	Kind         model.RecurrenceKind `json:"kind"`
	Frequency    model.Frequency      `json:"frequency"`
	Confidence   float64              `json:"confidence"`
	Method       Method               `json:"method"`
	Keyword      string               `json:"keyword,omitempty"`
	CycleDay     int                  `json:"cycle_day"`
	Occurrences  int                  `json:"occurrences"`
	MeanInterval float64              `json:"mean_interval_days"`
	MeanAmount   decimal.Decimal      `json:"mean_amount"`
}

// Outcome is the result of Classify. Result is set only when Status is StatusClassified;
// Reason is set only when Status is StatusMalformed.
type Outcome struct {
	Status        Status  `json:"status"`
	Merchant      string  `json:"merchant"`
	TransactionID string  `json:"transaction_id,omitempty"`
	Result        *Result `json:"result,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger used for per-merchant debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Classifier) { c.log = l }
}

// Classifier detects recurring charges from merchant history.
// It holds only read-only configuration.
type Classifier struct {
	cfg        Config
	billKW     normalize.KeywordSet
	subKW      normalize.KeywordSet
	categories []categoryMatcher
	billTol    decimal.Decimal
	subTol     decimal.Decimal
	log        zerolog.Logger
}

type categoryMatcher struct {
	category string
	keywords normalize.KeywordSet
}

// New creates a Classifier from cfg.
func New(cfg Config, opts ...Option) *Classifier {
	c := &Classifier{
		cfg:     cfg,
		billKW:  normalize.NewKeywordSet(cfg.BillKeywords),
		subKW:   normalize.NewKeywordSet(cfg.SubscriptionKeywords),
		billTol: decimal.NewFromFloat(cfg.BillAmountTolerance),
		subTol:  decimal.NewFromFloat(cfg.SubscriptionAmountTolerance),
		log:     zerolog.Nop(),
	}
	for _, r := range cfg.Categories {
		c.categories = append(c.categories, categoryMatcher{category: r.Category, keywords: normalize.NewKeywordSet(r.Keywords)})
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BuildHistory groups dated outflows by merchant within the window ending at asOf.
// A zero asOf means the latest date present. Entries are in date order, ties by amount.
func (c *Classifier) BuildHistory(txns []model.NormalizedTransaction, asOf civil.Date) model.MerchantHistory {
	w := c.window(txns, asOf)

	h := make(model.MerchantHistory)
	for _, t := range txns {
		if t.Inflow || !w.contains(t) {
			continue
		}
		h[t.Merchant] = append(h[t.Merchant], model.HistoryEntry{Date: *t.Date, Amount: t.Amount})
	}
	for m := range h {
		sortEntries(h[m])
	}
	return h
}

// Classify decides whether candidate is a recurring charge given its merchant's
// history. The history is expected to include the candidate itself.
func (c *Classifier) Classify(history model.MerchantHistory, candidate model.NormalizedTransaction) Outcome {
	out := Outcome{Merchant: candidate.Merchant, TransactionID: candidate.Raw.ID}
	if candidate.Merchant == "" {
		out.Status = StatusMalformed
		out.Reason = "missing merchant and description"
		return out
	}
	if !candidate.HasDate() {
		out.Status = StatusMalformed
		out.Reason = "unparseable date " + strconv.Quote(candidate.RawDate)
		return out
	}
	if candidate.Inflow {
		out.Status = StatusNotRecurring
		out.Reason = "inflow"
		return out
	}

	kind, keyword := c.keywordKind(candidate)
	series := history[candidate.Merchant]

	if len(series) >= 2 {
		if res, ok := c.pattern(series, candidate, kind); ok {
			res.Keyword = keyword
			out.Status = StatusClassified
			out.Result = res
			return out
		}
	}

	if kind != "" {
		freq := model.FrequencyMonthly
		res := &Result{
			Kind:        kind,
			Confidence:  c.cfg.Confidence.Keyword,
			Method:      MethodKeyword,
			Keyword:     keyword,
			CycleDay:    candidate.Date.Day,
			Occurrences: len(series),
			MeanAmount:  candidate.Amount,
		}
		if len(series) >= 2 {
			mean := meanInterval(series)
			res.MeanInterval = mean
			if f, ok := c.cfg.Bands.BucketInterval(mean); ok {
				freq = f
			}
			res.MeanAmount = meanAmount(series)
		}
		res.Frequency = freq
		out.Status = StatusClassified
		out.Result = res
		return out
	}

	out.Status = StatusNotRecurring
	return out
}

// keywordKind returns the kind implied by the vocabularies, if any.
// Subscription keywords are checked first so "youtube premium" is not a bill.
func (c *Classifier) keywordKind(t model.NormalizedTransaction) (model.RecurrenceKind, string) {
	if kw, ok := c.subKW.Match(t.Merchant, t.Description); ok {
		return model.KindSubscription, kw
	}
	if kw, ok := c.billKW.Match(t.Merchant, t.Description); ok {
		return model.KindBill, kw
	}
	return "", ""
}

// pattern applies the interval and amount stability checks to series.
func (c *Classifier) pattern(series []model.HistoryEntry, candidate model.NormalizedTransaction, hint model.RecurrenceKind) (*Result, bool) {
	sorted := make([]model.HistoryEntry, len(series))
	copy(sorted, series)
	sortEntries(sorted)

	interval := meanInterval(sorted)
	freq, ok := c.cfg.Bands.BucketInterval(interval)
	if !ok {
		return nil, false
	}

	mean := meanAmount(sorted)
	var kind model.RecurrenceKind
	switch hint {
	case model.KindBill:
		if withinBand(candidate.Amount, mean, c.billTol) {
			kind = model.KindBill
		}
	case model.KindSubscription:
		if withinBand(candidate.Amount, mean, c.subTol) {
			kind = model.KindSubscription
		}
	default:
		if withinBand(candidate.Amount, mean, c.subTol) {
			kind = model.KindSubscription
		} else if withinBand(candidate.Amount, mean, c.billTol) {
			kind = model.KindBill
		}
	}
	if kind == "" {
		return nil, false
	}

	conf := c.cfg.Confidence.Weak
	if len(sorted) >= c.cfg.Confidence.StrongMinCount {
		conf = c.cfg.Confidence.Strong
	}
	return &Result{
		Kind:         kind,
		Frequency:    freq,
		Confidence:   conf,
		Method:       MethodPattern,
		CycleDay:     candidate.Date.Day,
		Occurrences:  len(sorted),
		MeanInterval: interval,
		MeanAmount:   mean.Round(2),
	}, true
}

// Category returns the subscription category label for t.
func (c *Classifier) Category(t model.NormalizedTransaction) string {
	for _, cm := range c.categories {
		if _, ok := cm.keywords.Match(t.Merchant, t.Description); ok {
			return cm.category
		}
	}
	return c.cfg.DefaultCategory
}

// meanInterval is the mean gap in days between consecutive sorted entries.
func meanInterval(sorted []model.HistoryEntry) float64 {
	first, last := sorted[0].Date, sorted[0].Date
	for _, e := range sorted[1:] {
		if e.Date.Before(first) {
			first = e.Date
		}
		if e.Date.After(last) {
			last = e.Date
		}
	}
	return float64(last.DaysSince(first)) / float64(len(sorted)-1)
}

func meanAmount(entries []model.HistoryEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	return sum.Div(decimal.NewFromInt(int64(len(entries))))
}

// withinBand reports |amount - mean| <= mean * tol. A zero mean never passes.
func withinBand(amount, mean, tol decimal.Decimal) bool {
	if !mean.IsPositive() {
		return false
	}
	return amount.Sub(mean).Abs().LessThanOrEqual(mean.Mul(tol))
}

func sortEntries(entries []model.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].Amount.LessThan(entries[j].Amount)
	})
}

func latestDate(txns []model.NormalizedTransaction) civil.Date {
	var latest civil.Date
	for _, t := range txns {
		if t.HasDate() && (!latest.IsValid() || t.Date.After(latest)) {
			latest = *t.Date
		}
	}
	return latest
}
