package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chaseHeader = "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"

func TestChaseParser_Parse(t *testing.T) {
	data, err := os.ReadFile("../../testdata/chase_checking.csv")
	require.NoError(t, err)

	p := &ChaseParser{}
	txns, err := p.Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	require.Len(t, txns, 6)

	assert.Equal(t, "SPOTIFY USA", txns[0].Description)
	assert.Equal(t, "01/03/2025", txns[0].Date)
	assert.Equal(t, "9.99", txns[0].Amount)
	assert.Empty(t, txns[0].ID)

	// Income flips to negative: money in.
	assert.Equal(t, "ACME CORP PAYROLL DEPOSIT", txns[3].Description)
	assert.Equal(t, "-3500.00", txns[3].Amount)

	assert.Equal(t, "1042", txns[5].CheckNumber)
	assert.Equal(t, "1042", txns[5].Reference())
}

func TestChaseParser_EmptyFile(t *testing.T) {
	p := &ChaseParser{}
	txns, err := p.Parse(strings.NewReader(chaseHeader))
	require.NoError(t, err)
	assert.Nil(t, txns)
}

func TestChaseParser_KeepsBadValues(t *testing.T) {
	csv := chaseHeader + "DEBIT,NOTADATE,desc,NOTANUMBER,ACH_DEBIT,100.00,\n"
	p := &ChaseParser{}
	txns, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "NOTADATE", txns[0].Date)
	assert.Equal(t, "-NOTANUMBER", txns[0].Amount)
}

func TestChaseParser_WrongFieldCount(t *testing.T) {
	csv := chaseHeader + "DEBIT,01/03/2025,desc\n"
	p := &ChaseParser{}
	_, err := p.Parse(strings.NewReader(csv))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "reading chase CSV")
}

func TestChaseParser_Format(t *testing.T) {
	p := &ChaseParser{}
	assert.Equal(t, "chase", p.Format())
}

func TestGenericParser_Parse(t *testing.T) {
	csv := "ID,Date,Amount,Description,Merchant Name,Reference Number,Category\n" +
		"t1,2025-01-03,9.99,SPOTIFY P1234,Spotify,R-1,Entertainment\n" +
		"t2,2025-01-04,12.00,CORNER DELI,,,\n"
	p := &GenericParser{}
	txns, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, txns, 2)

	assert.Equal(t, "t1", txns[0].ID)
	assert.Equal(t, "2025-01-03", txns[0].Date)
	assert.Equal(t, "9.99", txns[0].Amount)
	assert.Equal(t, "SPOTIFY P1234", txns[0].Description)
	assert.Equal(t, "Spotify", txns[0].MerchantName)
	assert.Equal(t, "R-1", txns[0].ReferenceNumber)
	assert.Equal(t, "Entertainment", txns[0].Category)
	assert.Empty(t, txns[1].MerchantName)
}

func TestGenericParser_NegativeOutflow(t *testing.T) {
	csv := "date,amount,name\n2025-01-03,-9.99,Spotify\n2025-01-04,+20,Refund\n"
	p := &GenericParser{NegativeOutflow: true}
	txns, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "9.99", txns[0].Amount)
	assert.Equal(t, "-20", txns[1].Amount)
	assert.Equal(t, "Spotify", txns[0].Name)
}

func TestGenericParser_MissingColumns(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"no date", "amount,description\n", `"date"`},
		{"no amount", "date,description\n", `"amount"`},
		{"no description", "date,amount\n", "description or name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &GenericParser{}
			_, err := p.Parse(strings.NewReader(tt.header))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGenericParser_ShortRow(t *testing.T) {
	csv := "date,amount,description,category\n2025-01-03,9.99\n"
	p := &GenericParser{}
	txns, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Empty(t, txns[0].Description)
	assert.Empty(t, txns[0].Category)
}

func TestParseFile(t *testing.T) {
	txns, err := ParseFile(&GenericParser{}, "../../testdata/existing.csv")
	require.NoError(t, err)
	assert.Len(t, txns, 3)

	_, err = ParseFile(&GenericParser{}, filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFlipSign(t *testing.T) {
	assert.Equal(t, "9.99", flipSign("-9.99"))
	assert.Equal(t, "-9.99", flipSign("9.99"))
	assert.Equal(t, "-9.99", flipSign("+9.99"))
	assert.Equal(t, "", flipSign("  "))
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	p := r.Get("CHASE")
	require.NotNil(t, p)
	assert.Equal(t, "chase", p.Format())
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	assert.Panics(t, func() { r.Register(&ChaseParser{}) })
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Get("chase"))
	assert.NotNil(t, r.Get("generic"))
	assert.ElementsMatch(t, []string{"chase", "generic"}, r.Formats())
}
