package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/recon/internal/model"
)

// GenericParser reads a header-driven CSV. Column names are matched
// case-insensitively; date, amount and one of description or name are required.
type GenericParser struct {
	// NegativeOutflow marks exports where money out is negative.
	NegativeOutflow bool
}

var genericColumns = map[string][]string{
	"id":          {"id", "transaction_id"},
	"date":        {"date", "transaction_date", "posting_date", "posted"},
	"amount":      {"amount"},
	"description": {"description", "memo"},
	"name":        {"name", "payee"},
	"merchant":    {"merchant_name", "merchant"},
	"reference":   {"reference_number", "reference"},
	"check":       {"check_number", "check"},
	"category":    {"category"},
}

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

// Parse reads the CSV and returns RawTransactions.
func (p *GenericParser) Parse(r io.Reader) ([]model.RawTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols, err := columnMap(records[0])
	if err != nil {
		return nil, err
	}
	if len(records) == 1 {
		return nil, nil
	}

	txns := make([]model.RawTransaction, 0, len(records)-1)
	for _, rec := range records[1:] {
		get := func(field string) string {
			i, ok := cols[field]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		amount := get("amount")
		if p.NegativeOutflow {
			amount = flipSign(amount)
		}
		txns = append(txns, model.RawTransaction{
			ID:              get("id"),
			Date:            get("date"),
			Amount:          amount,
			Description:     get("description"),
			Name:            get("name"),
			MerchantName:    get("merchant"),
			ReferenceNumber: get("reference"),
			CheckNumber:     get("check"),
			Category:        get("category"),
		})
	}
	return txns, nil
}

// columnMap resolves header positions for each known field.
func columnMap(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		pos[key] = i
	}

	cols := make(map[string]int)
	for field, aliases := range genericColumns {
		for _, a := range aliases {
			if i, ok := pos[a]; ok {
				cols[field] = i
				break
			}
		}
	}

	for _, req := range []string{"date", "amount"} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("required column %q not found in CSV header", req)
		}
	}
	_, hasDesc := cols["description"]
	_, hasName := cols["name"]
	if !hasDesc && !hasName {
		return nil, fmt.Errorf("CSV header needs a description or name column")
	}
	return cols, nil
}
