package importer

import (
	"fmt"
	"io"

	"github.com/cleared-dev/spendwise/internal/model"
)

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct{}

const (
	chaseColDate   = 1
	chaseColDesc   = 2
	chaseColAmount = 3
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns TransactionRows. Short or malformed
// lines keep their position as degraded rows.
func (p *ChaseParser) Parse(r io.Reader) ([]model.TransactionRow, error) {
	recs, err := readRecords(r, ',', false)
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}
	if len(recs) <= 1 {
		return nil, nil
	}

	var rows []model.TransactionRow
	for _, rec := range recs[1:] {
		row := NewRow(field(rec.fields, chaseColDate), field(rec.fields, chaseColDesc), field(rec.fields, chaseColAmount))
		if rec.malformed {
			row.ParseConfidence = ConfidenceDegraded
		}
		rows = append(rows, row)
	}
	return rows, nil
}
