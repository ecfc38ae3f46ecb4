// Package normalize canonicalizes raw transactions into comparable fields.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
)

// Config holds the tunable normalization tables.
type Config struct {
	Aliases           map[string]string `yaml:"aliases"`
	DateLayouts       []string          `yaml:"date_layouts"`
	ProcessorPrefixes []string          `yaml:"processor_prefixes"`
}

// DefaultConfig returns the built-in alias table and date layouts.
func DefaultConfig() Config {
	return Config{
		Aliases: map[string]string{
			"amzn.com/bill": "amazon",
			"amzn mktp":     "amazon",
			"amzn mkpt":     "amazon",
			"amzn.com":      "amazon",
		},
		DateLayouts: []string{
			"2006-01-02",
			"01/02/2006",
			"1/2/2006",
			"01/02/06",
			"1/2/06",
			"2006/01/02",
			"Jan 2, 2006",
			"January 2, 2006",
			"2 Jan 2006",
			time.RFC3339,
		},
		ProcessorPrefixes: []string{"sq", "tst", "paypal", "pp", "sp"},
	}
}

var (
	starToken   = regexp.MustCompile(`\*[a-z0-9]+`)
	hashToken   = regexp.MustCompile(`#\d+`)
	trailingNum = regexp.MustCompile(`^\d{4,}$`)
)

type alias struct {
	from, to string
}

// Normalizer converts raw transactions into NormalizedTransactions.
// It holds only read-only tables and is safe for concurrent use.
type Normalizer struct {
	aliases  []alias
	layouts  []string
	prefixes map[string]bool
}

// New creates a Normalizer from cfg.
func New(cfg Config) *Normalizer {
	n := &Normalizer{
		layouts:  cfg.DateLayouts,
		prefixes: make(map[string]bool, len(cfg.ProcessorPrefixes)),
	}
	for from, to := range cfg.Aliases {
		n.aliases = append(n.aliases, alias{from: strings.ToLower(from), to: strings.ToLower(to)})
	}
	// Longest alias first so "amzn.com/bill" wins over "amzn.com".
	sort.Slice(n.aliases, func(i, j int) bool {
		if len(n.aliases[i].from) != len(n.aliases[j].from) {
			return len(n.aliases[i].from) > len(n.aliases[j].from)
		}
		return n.aliases[i].from < n.aliases[j].from
	})
	for _, p := range cfg.ProcessorPrefixes {
		n.prefixes[strings.ToLower(p)] = true
	}
	return n
}

// Normalize canonicalizes raw. It never fails: a bad date yields a nil Date
// with RawDate kept, and a bad amount yields zero.
func (n *Normalizer) Normalize(raw model.RawTransaction) model.NormalizedTransaction {
	out := model.NormalizedTransaction{
		RawDate:     raw.Date,
		Description: n.Description(descriptionSource(raw)),
		Merchant:    n.Merchant(raw),
		Reference:   strings.TrimSpace(raw.Reference()),
		Raw:         raw,
	}
	if d, ok := n.ParseDate(raw.Date); ok {
		out.Date = &d
	}
	signed, _ := ParseSignedAmount(raw.Amount)
	out.Amount = signed.Abs()
	out.Inflow = signed.IsNegative()
	return out
}

// NormalizeAll normalizes every transaction in txns.
func (n *Normalizer) NormalizeAll(txns []model.RawTransaction) []model.NormalizedTransaction {
	out := make([]model.NormalizedTransaction, len(txns))
	for i, t := range txns {
		out[i] = n.Normalize(t)
	}
	return out
}

// Description lower-cases s, strips card-network reference tokens,
// collapses whitespace and applies the alias table.
func (n *Normalizer) Description(s string) string {
	s = strings.ToLower(s)
	s = starToken.ReplaceAllString(s, " ")
	s = hashToken.ReplaceAllString(s, " ")
	s = collapse(s)
	return n.applyAliases(s)
}

// Merchant returns the grouping key for raw: the merchant name when present,
// otherwise the description, with processor prefixes and store numbers removed.
func (n *Normalizer) Merchant(raw model.RawTransaction) string {
	src := raw.MerchantName
	if strings.TrimSpace(src) == "" {
		src = descriptionSource(raw)
	}
	s := strings.ToLower(src)
	s = strings.ReplaceAll(s, "*", " ")
	s = hashToken.ReplaceAllString(s, " ")
	tokens := strings.Fields(s)
	if len(tokens) > 1 && n.prefixes[tokens[0]] {
		tokens = tokens[1:]
	}
	for len(tokens) > 1 && trailingNum.MatchString(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}
	return n.applyAliases(strings.Join(tokens, " "))
}

// ParseDate tries each configured layout in order.
func (n *Normalizer) ParseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	for _, layout := range n.layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := civil.DateOf(t)
		if d.IsValid() {
			return d, true
		}
	}
	return civil.Date{}, false
}

// ParseAmount parses a money string into its absolute value rounded to cents.
// Currency symbols, thousands separators and accounting parentheses are accepted.
// Returns zero and false when s is not a number.
func ParseAmount(s string) (decimal.Decimal, bool) {
	d, ok := ParseSignedAmount(s)
	return d.Abs(), ok
}

// ParseSignedAmount is ParseAmount keeping the sign. A leading or trailing
// minus and accounting parentheses each negate the value.
func ParseSignedAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") && strings.Contains(s, "(") {
		neg = !neg
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = !neg
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if strings.HasSuffix(s, "-") {
		neg = !neg
		s = strings.TrimSuffix(s, "-")
	}
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d.Round(2), true
}

// Tokens splits a normalized description into its word set.
func Tokens(desc string) []string {
	return strings.Fields(desc)
}

func (n *Normalizer) applyAliases(s string) string {
	for _, a := range n.aliases {
		if strings.Contains(s, a.from) {
			s = strings.ReplaceAll(s, a.from, a.to)
		}
	}
	return collapse(s)
}

func descriptionSource(raw model.RawTransaction) string {
	if strings.TrimSpace(raw.Name) != "" {
		return raw.Name
	}
	return raw.Description
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
