// Package dedup decides whether incoming transactions already exist in history.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/normalize"
)

// Config holds the matching tolerances.
type Config struct {
	DateToleranceDays   int             `yaml:"date_tolerance_days"`
	AmountTolerance     decimal.Decimal `yaml:"amount_tolerance"`
	SimilarityThreshold float64         `yaml:"similarity_threshold"`
}

// DefaultConfig returns a one-day, one-cent, 0.80-similarity configuration.
func DefaultConfig() Config {
	return Config{
		DateToleranceDays:   1,
		AmountTolerance:     decimal.RequireFromString("0.01"),
		SimilarityThreshold: 0.80,
	}
}

// Match pairs a duplicate incoming transaction with the record it matched.
type Match struct {
	New      model.RawTransaction `json:"new"`
	Existing model.RawTransaction `json:"existing"`
	Reason   model.MatchReason    `json:"reason"`
}

// Stats summarizes one FindDuplicates call.
type Stats struct {
	TotalNew          int     `json:"total_new"`
	UniqueCount       int     `json:"unique_count"`
	DuplicateCount    int     `json:"duplicate_count"`
	DeduplicationRate float64 `json:"deduplication_rate"`
}

// Result partitions the incoming batch. Duplicates and MatchedExisting are
// index-aligned: MatchedExisting[i] is the record Duplicates[i] matched.
type Result struct {
	Unique          []model.RawTransaction `json:"unique"`
	Duplicates      []model.RawTransaction `json:"duplicates"`
	MatchedExisting []model.RawTransaction `json:"matched_existing"`
	Matches         []Match                `json:"matches"`
	Stats           Stats                  `json:"stats"`
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithLogger sets the logger used for per-match debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Deduplicator) { d.log = l }
}

// Deduplicator runs the identity, reference, fingerprint, fuzzy cascade.
// It keeps no state between calls.
type Deduplicator struct {
	norm *normalize.Normalizer
	cfg  Config
	log  zerolog.Logger
}

// New creates a Deduplicator.
func New(norm *normalize.Normalizer, cfg Config, opts ...Option) *Deduplicator {
	d := &Deduplicator{norm: norm, cfg: cfg, log: zerolog.Nop()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Fingerprint returns the hex digest of date, amount and reference
// (or description when there is no reference). An unparseable date
// contributes its original string, never a shared placeholder.
func Fingerprint(n model.NormalizedTransaction) string {
	key := n.Reference
	if key == "" {
		key = n.Description
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", n.DateKey(), n.Amount.StringFixed(2), key)))
	return hex.EncodeToString(sum[:])
}

// Compare reports whether a and b are the same transaction and which
// cascade stage decided it. The first matching stage wins.
func (d *Deduplicator) Compare(a, b model.NormalizedTransaction) (bool, model.MatchReason) {
	if a.Raw.ID != "" && a.Raw.ID == b.Raw.ID {
		return true, model.MatchIdentity
	}
	if !a.HasDate() || !b.HasDate() {
		return false, model.MatchNone
	}
	near := d.datesClose(a, b) && d.amountsClose(a, b)
	if a.Reference != "" && a.Reference == b.Reference && near {
		return true, model.MatchReference
	}
	if a.Amount.Equal(b.Amount) && Fingerprint(a) == Fingerprint(b) {
		return true, model.MatchFingerprint
	}
	if near && Similarity(a.Description, b.Description) >= d.cfg.SimilarityThreshold {
		return true, model.MatchFuzzy
	}
	return false, model.MatchNone
}

// FindDuplicates partitions newTxns into unique records and duplicates of existing.
func (d *Deduplicator) FindDuplicates(newTxns, existing []model.RawTransaction) Result {
	var res Result
	res.Stats.TotalNew = len(newTxns)
	if len(newTxns) == 0 {
		return res
	}

	exN := d.norm.NormalizeAll(existing)
	byID := make(map[string]int, len(exN))
	byFP := make(map[string][]int, len(exN))
	for i, e := range exN {
		if e.Raw.ID != "" {
			if _, ok := byID[e.Raw.ID]; !ok {
				byID[e.Raw.ID] = i
			}
		}
		if e.HasDate() {
			fp := Fingerprint(e)
			byFP[fp] = append(byFP[fp], i)
		}
	}

	for _, raw := range newTxns {
		n := d.norm.Normalize(raw)
		idx, reason := d.lookup(n, exN, byID, byFP)
		if idx < 0 {
			res.Unique = append(res.Unique, raw)
			continue
		}
		d.log.Debug().
			Str("id", raw.ID).
			Str("existing_id", exN[idx].Raw.ID).
			Str("reason", string(reason)).
			Msg("duplicate transaction")
		res.Duplicates = append(res.Duplicates, raw)
		res.MatchedExisting = append(res.MatchedExisting, existing[idx])
		res.Matches = append(res.Matches, Match{New: raw, Existing: existing[idx], Reason: reason})
	}

	res.Stats.UniqueCount = len(res.Unique)
	res.Stats.DuplicateCount = len(res.Duplicates)
	res.Stats.DeduplicationRate = float64(res.Stats.DuplicateCount) / float64(res.Stats.TotalNew)
	return res
}

// lookup returns the index of the existing record n duplicates, or -1.
func (d *Deduplicator) lookup(n model.NormalizedTransaction, exN []model.NormalizedTransaction, byID map[string]int, byFP map[string][]int) (int, model.MatchReason) {
	if n.Raw.ID != "" {
		if i, ok := byID[n.Raw.ID]; ok {
			return i, model.MatchIdentity
		}
	}

	if n.HasDate() {
		if bucket, ok := byFP[Fingerprint(n)]; ok {
			for _, i := range bucket {
				if dup, reason := d.Compare(n, exN[i]); dup {
					return i, reason
				}
			}
			return -1, model.MatchNone
		}
	}

	for i := range exN {
		if dup, reason := d.Compare(n, exN[i]); dup {
			return i, reason
		}
	}
	return -1, model.MatchNone
}

func (d *Deduplicator) datesClose(a, b model.NormalizedTransaction) bool {
	days := a.Date.DaysSince(*b.Date)
	if days < 0 {
		days = -days
	}
	return days <= d.cfg.DateToleranceDays
}

func (d *Deduplicator) amountsClose(a, b model.NormalizedTransaction) bool {
	return a.Amount.Sub(b.Amount).Abs().LessThanOrEqual(d.cfg.AmountTolerance)
}
