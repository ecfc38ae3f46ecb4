package normalize

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/model"
)

func TestDescription(t *testing.T) {
	n := New(DefaultConfig())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and collapse", "  NETFLIX   COM  ", "netflix com"},
		{"strip star token", "SQ *COFFEE SHOP #42", "sq shop"},
		{"strip hash digits", "Target #1234 Store", "target store"},
		{"alias mktp", "AMZN Mktp US", "amazon us"},
		{"alias longest first", "amzn.com/bill WA", "amazon wa"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Description(tt.in))
		})
	}
}

func TestDescription_CaseAndReferenceInsensitive(t *testing.T) {
	n := New(DefaultConfig())
	assert.Equal(t, n.Description("SQ *COFFEE SHOP #42"), n.Description("sq *coffee shop"))
}

func TestMerchant(t *testing.T) {
	n := New(DefaultConfig())

	tests := []struct {
		name string
		raw  model.RawTransaction
		want string
	}{
		{"merchant name wins", model.RawTransaction{Name: "SPOTIFY P1234", MerchantName: "Spotify"}, "spotify"},
		{"processor prefix", model.RawTransaction{Description: "SQ *COFFEE SHOP #42"}, "coffee shop"},
		{"trailing store number", model.RawTransaction{Description: "SHELL OIL 57444"}, "shell oil"},
		{"name preferred over description", model.RawTransaction{Name: "Netflix", Description: "other"}, "netflix"},
		{"alias", model.RawTransaction{Description: "AMZN MKTP US"}, "amazon us"},
		{"single numeric token kept", model.RawTransaction{Description: "7777"}, "7777"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Merchant(tt.raw))
		})
	}
}

func TestParseDate(t *testing.T) {
	n := New(DefaultConfig())

	tests := []struct {
		in   string
		want civil.Date
		ok   bool
	}{
		{"2025-01-15", civil.Date{Year: 2025, Month: 1, Day: 15}, true},
		{"01/15/2025", civil.Date{Year: 2025, Month: 1, Day: 15}, true},
		{"1/5/2025", civil.Date{Year: 2025, Month: 1, Day: 5}, true},
		{"01/15/25", civil.Date{Year: 2025, Month: 1, Day: 15}, true},
		{"Jan 15, 2025", civil.Date{Year: 2025, Month: 1, Day: 15}, true},
		{"2025-01-15T10:00:00Z", civil.Date{Year: 2025, Month: 1, Day: 15}, true},
		{"not a date", civil.Date{}, false},
		{"", civil.Date{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := n.ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"9.99", "9.99", true},
		{"-9.99", "9.99", true},
		{"$1,234.50", "1234.50", true},
		{"(45.00)", "45.00", true},
		{"12.345", "12.35", true},
		{"abc", "0.00", false},
		{"", "0.00", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestParseSignedAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9.99", "9.99"},
		{"+9.99", "9.99"},
		{"-3500.00", "-3500.00"},
		{"$-1,200.00", "-1200.00"},
		{"(45.00)", "-45.00"},
		{"-(45.00)", "45.00"},
		{"45.00-", "-45.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSignedAmount(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestNormalize_Direction(t *testing.T) {
	n := New(DefaultConfig())

	out := n.Normalize(model.RawTransaction{Date: "2025-03-14", Amount: "-3500.00", Description: "ACME CORP PAYROLL"})
	assert.True(t, out.Inflow)
	assert.Equal(t, "3500.00", out.Amount.StringFixed(2))

	spend := n.Normalize(model.RawTransaction{Date: "2025-03-14", Amount: "82.17", Description: "WHOLE FOODS"})
	assert.False(t, spend.Inflow)
}

func TestNormalize_BadInputDegrades(t *testing.T) {
	n := New(DefaultConfig())
	got := n.Normalize(model.RawTransaction{Date: "someday", Amount: "lots", Description: "X"})

	assert.Nil(t, got.Date)
	assert.Equal(t, "someday", got.RawDate)
	assert.Equal(t, "UNPARSEABLE_someday", got.DateKey())
	assert.True(t, got.Amount.IsZero())
	assert.Equal(t, "x", got.Description)
}

func TestNormalize_Pure(t *testing.T) {
	n := New(DefaultConfig())
	raw := model.RawTransaction{
		ID:              "t1",
		Date:            "03/01/2025",
		Amount:          "-45.00",
		Description:     "RENT PAYMENT #1001",
		ReferenceNumber: " 889 ",
	}

	first := n.Normalize(raw)
	second := n.Normalize(raw)
	require.NotNil(t, first.Date)
	assert.Equal(t, first, second)
	assert.Equal(t, "2025-03-01", first.DateKey())
	assert.Equal(t, "45.00", first.Amount.StringFixed(2))
	assert.Equal(t, "rent payment", first.Description)
	assert.Equal(t, "889", first.Reference)
}

func TestNormalize_CheckNumberReference(t *testing.T) {
	n := New(DefaultConfig())
	got := n.Normalize(model.RawTransaction{Date: "2025-01-01", Amount: "1", CheckNumber: "1042"})
	assert.Equal(t, "1042", got.Reference)
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"coffee", "shop"}, Tokens("coffee  shop"))
	assert.Empty(t, Tokens(""))
}
