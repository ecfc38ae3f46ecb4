package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/recon/internal/model"
)

// ChaseParser parses Chase bank checking CSV exports.
// Chase reports debits as negative amounts.
type ChaseParser struct{}

const (
	chaseNumFields = 7
	chaseColDate   = 1
	chaseColDesc   = 2
	chaseColAmount = 3
	chaseColCheck  = 6
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns RawTransactions.
func (p *ChaseParser) Parse(r io.Reader) ([]model.RawTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	txns := make([]model.RawTransaction, 0, len(records)-1)
	for _, rec := range records[1:] {
		txns = append(txns, model.RawTransaction{
			Date:        strings.TrimSpace(rec[chaseColDate]),
			Amount:      flipSign(rec[chaseColAmount]),
			Description: strings.TrimSpace(rec[chaseColDesc]),
			CheckNumber: strings.TrimSpace(rec[chaseColCheck]),
		})
	}
	return txns, nil
}
