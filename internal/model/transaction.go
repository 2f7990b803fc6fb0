package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the canonical calendar date layout for TransactionRow.Date.
const DateFormat = "2006-01-02"

// TransactionRow represents a parsed ledger row.
type TransactionRow struct {
	Date            string          `json:"date"` // YYYY-MM-DD, or the raw text if unparseable
	Merchant        string          `json:"merchant"`
	Amount          decimal.Decimal `json:"amount"` // negative = debit, positive = credit
	ParseConfidence float64         `json:"parseConfidence"`
}

// Time returns the parsed calendar date. ok is false when Date is not canonical.
func (r TransactionRow) Time() (t time.Time, ok bool) {
	t, err := time.Parse(DateFormat, r.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsDebit reports whether the row is money going out.
func (r TransactionRow) IsDebit() bool { return r.Amount.IsNegative() }

// Source identifies which classifier produced a ClassifiedRow.
type Source string

const (
	SourceRule          Source = "rule"
	SourceProbabilistic Source = "probabilistic"
	SourceReconciled    Source = "reconciled"
)

// ClassifiedRow is a TransactionRow with a category assignment.
type ClassifiedRow struct {
	TransactionRow
	Category   Category `json:"category"`
	Source     Source   `json:"source"`
	Rationale  string   `json:"rationale"`
	Confidence float64  `json:"confidence"`
}
