package model

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// RawTransaction is a transaction as received from upstream ingestion.
// Fields are kept as the source supplied them; nothing is parsed here.
type RawTransaction struct {
	ID              string `json:"id,omitempty"`
	Date            string `json:"date"`
	Amount          string `json:"amount"` // positive = money out
	Description     string `json:"description,omitempty"`
	Name            string `json:"name,omitempty"`
	MerchantName    string `json:"merchant_name,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	CheckNumber     string `json:"check_number,omitempty"`
	Category        string `json:"category,omitempty"` // label assigned before reconciliation, if any
}

// Reference returns the reference number, falling back to the check number.
func (r RawTransaction) Reference() string {
	if r.ReferenceNumber != "" {
		return r.ReferenceNumber
	}
	return r.CheckNumber
}

// NormalizedTransaction holds the comparable form of a RawTransaction.
// It is recomputed on every reconciliation call and never stored.
type NormalizedTransaction struct {
	Date        *civil.Date     // nil when RawDate could not be parsed
	RawDate     string          // original date string, always retained
	Amount      decimal.Decimal // absolute value, rounded to cents
	Inflow      bool            // money in: deposits, credits and refunds
	Description string
	Merchant    string // grouping key for merchant history
	Reference   string
	Raw         RawTransaction
}

// HasDate reports whether the transaction has a parsed calendar date.
func (n NormalizedTransaction) HasDate() bool { return n.Date != nil }

// DateKey returns the ISO date, or the unparseable sentinel carrying the raw string.
func (n NormalizedTransaction) DateKey() string {
	if n.Date == nil {
		return "UNPARSEABLE_" + n.RawDate
	}
	return n.Date.String()
}

// MatchReason names the dedup cascade stage that matched.
type MatchReason string

const (
	MatchNone        MatchReason = ""
	MatchIdentity    MatchReason = "identity"
	MatchReference   MatchReason = "reference"
	MatchFingerprint MatchReason = "fingerprint"
	MatchFuzzy       MatchReason = "fuzzy"
)
