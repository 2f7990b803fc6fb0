package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/spendwise/internal/model"
)

func row(merchant, amount string) model.TransactionRow {
	return model.TransactionRow{
		Date:            "2025-01-10",
		Merchant:        merchant,
		Amount:          decimal.RequireFromString(amount),
		ParseConfidence: 0.95,
	}
}

func newClassifier(t *testing.T, tbl Table) *Classifier {
	t.Helper()
	c, err := NewClassifier(tbl)
	require.NoError(t, err)
	return c
}

func TestDefaultTable(t *testing.T) {
	tbl := DefaultTable()
	assert.Greater(t, tbl.Size(), 50)
	assert.Contains(t, tbl.Keywords[model.CategoryIncome], "salary")
	assert.Contains(t, tbl.Keywords[model.CategorySubscriptions], "spotify")
}

func TestParseTable_UnknownCategory(t *testing.T) {
	_, err := ParseTable([]byte("keywords:\n  Gadgets: [phone]\n"))
	assert.ErrorContains(t, err, "Gadgets")
}

func TestParseTable_CaseInsensitiveCategory(t *testing.T) {
	tbl, err := ParseTable([]byte("keywords:\n  dining: [cafe, '  ']\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cafe"}, tbl.Keywords[model.CategoryDining])
}

func TestLoadTable_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data, err := DefaultTable().Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	tbl, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTable().Size(), tbl.Size())
}

func TestLoadTable_Missing(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestClassify_IncomeOnCredit(t *testing.T) {
	c := newClassifier(t, DefaultTable())

	got := c.Classify(row("ACME Salary", "2500.00"))
	assert.Equal(t, model.CategoryIncome, got.Category)
	assert.Equal(t, ConfidenceIncome, got.Confidence)
	assert.Equal(t, model.SourceRule, got.Source)
	assert.Contains(t, got.Rationale, "salary")
}

func TestClassify_PrecedenceResolvesOverlap(t *testing.T) {
	tbl := Table{Keywords: map[model.Category][]string{
		model.CategoryDining:   {"kitchen"},
		model.CategoryShopping: {"store"},
	}}
	c := newClassifier(t, tbl)

	got := c.Classify(row("Kitchen Store", "-18.00"))
	assert.Equal(t, model.CategoryDining, got.Category)
	assert.Equal(t, ConfidenceMatch, got.Confidence)
	assert.Contains(t, got.Rationale, "kitchen")
	assert.Contains(t, got.Rationale, "precedence")
}

func TestClassify_IncomeKeywordOnDebitUsesPrecedence(t *testing.T) {
	tbl := Table{Keywords: map[model.Category][]string{
		model.CategoryIncome:   {"refund"},
		model.CategoryShopping: {"amazon"},
	}}
	c := newClassifier(t, tbl)

	got := c.Classify(row("Amazon refund reversal", "-10.00"))
	assert.Equal(t, model.CategoryShopping, got.Category)
}

func TestClassify_NoHit(t *testing.T) {
	c := newClassifier(t, DefaultTable())
	got := c.Classify(row("Zzyzx Holdings", "-3.00"))
	assert.Equal(t, model.CategoryOther, got.Category)
	assert.Equal(t, ConfidenceMiss, got.Confidence)
	assert.Equal(t, "no rule hit", got.Rationale)
}

func TestClassify_WholeWordOnly(t *testing.T) {
	tbl := Table{Keywords: map[model.Category][]string{
		model.CategoryBills: {"rent"},
	}}
	c := newClassifier(t, tbl)

	tests := []struct {
		merchant string
		want     model.Category
	}{
		{"RENT PAYMENT", model.CategoryBills},
		{"Monthly rent", model.CategoryBills},
		{"rent-a-car", model.CategoryBills},
		{"Parent Teacher Assoc", model.CategoryOther},
		{"Rentokil", model.CategoryOther},
		{"rent_2025", model.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.merchant, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(row(tt.merchant, "-1.00")).Category)
		})
	}
}

func TestClassify_MultiWordKeyword(t *testing.T) {
	c := newClassifier(t, DefaultTable())

	assert.Equal(t, model.CategoryBills, c.Classify(row("COUNCIL   TAX DD", "-120.00")).Category)
	assert.Equal(t, model.CategoryDining, c.Classify(row("Uber Eats London", "-22.00")).Category)
	assert.Equal(t, model.CategoryTransport, c.Classify(row("Uber trip", "-9.00")).Category)
}

func TestClassify_LongestKeywordWithinCategory(t *testing.T) {
	tbl := Table{Keywords: map[model.Category][]string{
		model.CategoryDining: {"pret", "pret a manger"},
	}}
	c := newClassifier(t, tbl)

	got := c.Classify(row("PRET A MANGER 123", "-6.50"))
	assert.Contains(t, got.Rationale, `"pret a manger"`)
}

func TestClassifyAll_PreservesOrder(t *testing.T) {
	c := newClassifier(t, DefaultTable())
	rows := []model.TransactionRow{
		row("Tesco", "-20.00"),
		row("Spotify", "-9.99"),
		row("", "-1.00"),
	}
	got := c.ClassifyAll(rows)
	require.Len(t, got, 3)
	assert.Equal(t, model.CategoryGroceries, got[0].Category)
	assert.Equal(t, model.CategorySubscriptions, got[1].Category)
	assert.Equal(t, model.CategoryOther, got[2].Category)
	for i := range rows {
		assert.Equal(t, rows[i], got[i].TransactionRow)
	}
}
