// Package export writes categorised rows as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/model"
)

// Header is the CSV header for exported rows.
const Header = "date,merchant,amount,category,source,confidence,rationale"

const (
	numFields     = 7
	colDate       = 0
	colMerchant   = 1
	colAmount     = 2
	colCategory   = 3
	colSource     = 4
	colConfidence = 5
	colRationale  = 6
)

// MarshalRow converts a ClassifiedRow to a CSV record.
func MarshalRow(r model.ClassifiedRow) []string {
	rec := make([]string, numFields)
	rec[colDate] = r.Date
	rec[colMerchant] = r.Merchant
	rec[colAmount] = r.Amount.StringFixed(2)
	rec[colCategory] = string(r.Category)
	rec[colSource] = string(r.Source)
	rec[colConfidence] = strconv.FormatFloat(r.Confidence, 'f', 2, 64)
	rec[colRationale] = r.Rationale
	return rec
}

// UnmarshalRow converts a CSV record back to a ClassifiedRow.
func UnmarshalRow(rec []string) (model.ClassifiedRow, error) {
	if len(rec) != numFields {
		return model.ClassifiedRow{}, fmt.Errorf("expected %d fields, got %d", numFields, len(rec))
	}

	amount, err := decimal.NewFromString(rec[colAmount])
	if err != nil {
		return model.ClassifiedRow{}, fmt.Errorf("parsing amount %q: %w", rec[colAmount], err)
	}
	cat, ok := model.ParseCategory(rec[colCategory])
	if !ok {
		return model.ClassifiedRow{}, fmt.Errorf("unknown category %q", rec[colCategory])
	}
	conf, err := strconv.ParseFloat(rec[colConfidence], 64)
	if err != nil {
		return model.ClassifiedRow{}, fmt.Errorf("parsing confidence %q: %w", rec[colConfidence], err)
	}

	return model.ClassifiedRow{
		TransactionRow: model.TransactionRow{
			Date:     rec[colDate],
			Merchant: rec[colMerchant],
			Amount:   amount,
		},
		Category:   cat,
		Source:     model.Source(rec[colSource]),
		Confidence: conf,
		Rationale:  rec[colRationale],
	}, nil
}

// WriteRows writes rows to w, header first.
func WriteRows(w io.Writer, rows []model.ClassifiedRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(MarshalRow(r)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRows reads rows previously written by WriteRows.
func ReadRows(r io.Reader) ([]model.ClassifiedRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading export CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	rows := make([]model.ClassifiedRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := UnmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteFile writes rows to path, creating parent directories.
func WriteFile(path string, rows []model.ClassifiedRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating export dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := WriteRows(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
