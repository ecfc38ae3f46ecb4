package recurrence

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
)

// Detection is the batch output for one user's history.
type Detection struct {
	Subscriptions []model.SubscriptionRecord `json:"subscriptions"`
	Bills         []model.BillRecord         `json:"bills"`
	Outcomes      []Outcome                  `json:"outcomes"`
}

// Detect scans a user's transactions and emits one record per recurring merchant.
// The most recent outflow of each merchant is the candidate; inflows are never
// recurring charges. Transactions without a parseable date are reported as
// malformed outcomes.
func (c *Classifier) Detect(userID string, txns []model.NormalizedTransaction, asOf civil.Date) Detection {
	var det Detection
	history := c.BuildHistory(txns, asOf)
	w := c.window(txns, asOf)

	candidates := make(map[string]model.NormalizedTransaction)
	for _, t := range txns {
		if !t.HasDate() || t.Merchant == "" {
			det.Outcomes = append(det.Outcomes, c.Classify(history, t))
			continue
		}
		if t.Inflow || !w.contains(t) {
			continue
		}
		if cur, ok := candidates[t.Merchant]; !ok || later(t, cur) {
			candidates[t.Merchant] = t
		}
	}

	merchants := make([]string, 0, len(candidates))
	for m := range candidates {
		merchants = append(merchants, m)
	}
	sort.Strings(merchants)

	for _, m := range merchants {
		cand := candidates[m]
		out := c.Classify(history, cand)
		det.Outcomes = append(det.Outcomes, out)

		ev := c.log.Debug().Str("merchant", m).Str("status", string(out.Status))
		if out.Result != nil {
			ev = ev.Str("kind", string(out.Result.Kind)).
				Str("frequency", string(out.Result.Frequency)).
				Float64("confidence", out.Result.Confidence)
		}
		ev.Msg("recurrence classified")

		if out.Status != StatusClassified {
			continue
		}
		res := out.Result
		amount := recordAmount(res, history[m], cand)
		switch res.Kind {
		case model.KindSubscription:
			start := cand.Date
			if series := history[m]; len(series) > 0 {
				start = &series[0].Date
			}
			det.Subscriptions = append(det.Subscriptions, model.SubscriptionRecord{
				UserID:     userID,
				Merchant:   m,
				Amount:     amount,
				Frequency:  res.Frequency,
				Confidence: res.Confidence,
				StartDate:  *start,
				Category:   c.Category(cand),
			})
		case model.KindBill:
			det.Bills = append(det.Bills, model.BillRecord{
				UserID:     userID,
				Merchant:   m,
				IsBill:     true,
				CycleDay:   res.CycleDay,
				Amount:     amount,
				Frequency:  res.Frequency,
				Confidence: res.Confidence,
			})
		}
	}
	return det
}

// recordAmount is the amount stored on a detected record. A confirmed pattern
// takes the latest charge; a keyword detection takes the median of the series.
func recordAmount(res *Result, series []model.HistoryEntry, cand model.NormalizedTransaction) decimal.Decimal {
	if res.Method == MethodPattern || len(series) < 2 {
		return cand.Amount
	}
	return medianAmount(series).Round(2)
}

func medianAmount(entries []model.HistoryEntry) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(entries))
	for i, e := range entries {
		amounts[i] = e.Amount
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i].LessThan(amounts[j]) })
	mid := len(amounts) / 2
	if len(amounts)%2 == 1 {
		return amounts[mid]
	}
	return amounts[mid-1].Add(amounts[mid]).Div(decimal.NewFromInt(2))
}

// later orders candidates by date, then amount, then id.
func later(a, b model.NormalizedTransaction) bool {
	if *a.Date != *b.Date {
		return a.Date.After(*b.Date)
	}
	if !a.Amount.Equal(b.Amount) {
		return a.Amount.GreaterThan(b.Amount)
	}
	return a.Raw.ID < b.Raw.ID
}

type window struct {
	start, end civil.Date
}

// window returns the history window ending at asOf, or at the latest date when asOf is zero.
func (c *Classifier) window(txns []model.NormalizedTransaction, asOf civil.Date) window {
	if !asOf.IsValid() {
		asOf = latestDate(txns)
	}
	return window{start: asOf.AddDays(-c.cfg.WindowDays), end: asOf}
}

func (w window) contains(t model.NormalizedTransaction) bool {
	if !t.HasDate() || t.Merchant == "" {
		return false
	}
	return !t.Date.After(w.end) && t.Date.After(w.start)
}
