package model

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Frequency is the cadence of a recurring charge.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// RecurrenceKind distinguishes bills from subscriptions.
type RecurrenceKind string

const (
	KindBill         RecurrenceKind = "bill"
	KindSubscription RecurrenceKind = "subscription"
)

// HistoryEntry is one dated charge in a merchant's history.
type HistoryEntry struct {
	Date   civil.Date
	Amount decimal.Decimal
}

// MerchantHistory maps a normalized merchant to its charges in date order.
type MerchantHistory map[string][]HistoryEntry

// SubscriptionRecord is a detected subscription, unique per (user, merchant).
type SubscriptionRecord struct {
	UserID     string          `json:"user_id"`
	Merchant   string          `json:"merchant"`
	Amount     decimal.Decimal `json:"amount"`
	Frequency  Frequency       `json:"frequency"`
	Confidence float64         `json:"confidence"`
	StartDate  civil.Date      `json:"start_date"`
	Category   string          `json:"category"`
}

// Refine merges a later detection into an existing record.
func (s SubscriptionRecord) Refine(next SubscriptionRecord) SubscriptionRecord {
	out := next
	out.UserID = s.UserID
	out.Merchant = s.Merchant
	if s.StartDate.IsValid() && (!next.StartDate.IsValid() || s.StartDate.Before(next.StartDate)) {
		out.StartDate = s.StartDate
	}
	if s.Frequency == next.Frequency && s.Confidence > next.Confidence {
		out.Confidence = s.Confidence
	}
	if next.Category == "" {
		out.Category = s.Category
	}
	return out
}

// BillRecord is a detected recurring bill, unique per (user, merchant).
type BillRecord struct {
	UserID     string          `json:"user_id"`
	Merchant   string          `json:"merchant"`
	IsBill     bool            `json:"is_bill"`
	CycleDay   int             `json:"cycle_day"` // 1-31
	Amount     decimal.Decimal `json:"amount"`
	Frequency  Frequency       `json:"frequency"`
	Confidence float64         `json:"confidence"`
}

// Refine merges a later detection into an existing record.
func (b BillRecord) Refine(next BillRecord) BillRecord {
	out := next
	out.UserID = b.UserID
	out.Merchant = b.Merchant
	out.IsBill = true
	if next.CycleDay == 0 {
		out.CycleDay = b.CycleDay
	}
	if b.Frequency == next.Frequency && b.Confidence > next.Confidence {
		out.Confidence = b.Confidence
	}
	return out
}
