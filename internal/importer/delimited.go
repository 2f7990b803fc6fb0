package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/model"
)

const (
	// ConfidenceClean is assigned when merchant and amount both parsed.
	ConfidenceClean = 0.95
	// ConfidenceDegraded is assigned to any row with a missing merchant or bad amount.
	ConfidenceDegraded = 0.6
)

// dateLayouts are tried in order; the first match wins.
var dateLayouts = []string{
	model.DateFormat,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

var (
	dateHeaders     = []string{"date", "posting date", "transaction date"}
	merchantHeaders = []string{"description", "merchant", "name", "payee"}
	amountHeaders   = []string{"amount", "value"}
)

// DelimitedParser parses text with a `date, description, amount` header row.
// The delimiter (comma, semicolon or tab) is sniffed from the header line.
type DelimitedParser struct{}

// Format returns the parser name.
func (p *DelimitedParser) Format() string { return "csv" }

// Parse reads delimited text and returns one TransactionRow per non-blank
// data line.
func (p *DelimitedParser) Parse(r io.Reader) ([]model.TransactionRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	comma := sniffDelimiter(data)
	recs, err := readRecords(bytes.NewReader(data), comma, comma != '\t')
	if err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	cols := locateColumns(recs[0].fields)
	cols.decimalComma = comma == ';'

	var rows []model.TransactionRow
	for _, rec := range recs[1:] {
		row := cols.row(rec.fields)
		if rec.malformed {
			row.ParseConfidence = ConfidenceDegraded
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// maxLineSize bounds a single input line.
const maxLineSize = 1 << 20

// record is one input line split into fields. A malformed line has quoting
// the CSV reader could not make sense of; its fields come from a plain split.
type record struct {
	fields    []string
	malformed bool
}

// readRecords parses each physical line of r on its own, so a broken line
// never consumes the lines after it. Blank lines are skipped. Quoted fields
// cannot span lines.
func readRecords(r io.Reader, comma rune, trimLeadingSpace bool) ([]record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var recs []record
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		recs = append(recs, parseLine(line, comma, trimLeadingSpace))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func parseLine(line string, comma rune, trimLeadingSpace bool) record {
	// An odd quote count means a quoted field never closes.
	if strings.Count(line, `"`)%2 == 0 {
		cr := csv.NewReader(strings.NewReader(line))
		cr.Comma = comma
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		cr.TrimLeadingSpace = trimLeadingSpace
		if fields, err := cr.Read(); err == nil {
			return record{fields: fields}
		}
	}

	fields := strings.Split(line, string(comma))
	for i, f := range fields {
		fields[i] = strings.Trim(strings.TrimSpace(f), `"`)
	}
	return record{fields: fields, malformed: true}
}

type columns struct {
	date, merchant, amount int
	decimalComma           bool
}

func locateColumns(header []string) columns {
	return columns{
		date:     findColumn(header, dateHeaders, 0),
		merchant: findColumn(header, merchantHeaders, 1),
		amount:   findColumn(header, amountHeaders, 2),
	}
}

func findColumn(header, names []string, fallback int) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return fallback
}

func (c columns) row(rec []string) model.TransactionRow {
	return newRow(field(rec, c.date), field(rec, c.merchant), field(rec, c.amount), c.decimalComma)
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// NewRow normalizes raw date, description and amount text into a TransactionRow.
func NewRow(rawDate, rawDesc, rawAmount string) model.TransactionRow {
	return newRow(rawDate, rawDesc, rawAmount, false)
}

func newRow(rawDate, rawDesc, rawAmount string, decimalComma bool) model.TransactionRow {
	merchant := strings.TrimSpace(rawDesc)
	amount, amountOK := parseAmount(rawAmount, decimalComma)

	conf := ConfidenceClean
	if merchant == "" || !amountOK {
		conf = ConfidenceDegraded
	}

	return model.TransactionRow{
		Date:            NormalizeDate(rawDate),
		Merchant:        merchant,
		Amount:          amount,
		ParseConfidence: conf,
	}
}

// NormalizeDate returns s in YYYY-MM-DD form, or the trimmed input if no layout matches.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(model.DateFormat)
		}
	}
	return s
}

// ParseAmount parses a signed decimal, tolerating currency symbols, thousands
// separators and accounting-style parentheses. A single comma followed by
// exactly two digits, with no '.', is a decimal comma ("-12,50").
// ok is false for unparseable text.
func ParseAmount(s string) (decimal.Decimal, bool) {
	return parseAmount(s, false)
}

// parseAmount with decimalComma set reads a lone comma as the decimal point
// and '.' as a thousands separator, as semicolon-delimited exports write them.
func parseAmount(s string, decimalComma bool) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '£', '€', ' ':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, false
	}

	if decimalSeparator(s, decimalComma) == ',' {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// decimalSeparator picks ',' or '.' for s. When both appear, the last one is
// the decimal point. A lone comma is decimal when the source uses decimal
// commas or when exactly two digits follow it.
func decimalSeparator(s string, decimalComma bool) byte {
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	switch {
	case lastComma < 0:
		return '.'
	case lastDot >= 0:
		if lastComma > lastDot {
			return ','
		}
		return '.'
	case strings.Count(s, ",") > 1:
		return '.'
	case decimalComma || len(s)-lastComma-1 == 2:
		return ','
	}
	return '.'
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	switch {
	case bytes.Count(line, []byte{'\t'}) > bytes.Count(line, []byte{','}):
		return '\t'
	case bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}):
		return ';'
	}
	return ','
}
