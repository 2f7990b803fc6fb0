package importer

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelimitedParser_Parse(t *testing.T) {
	f, err := os.Open("../../testdata/transactions.csv")
	require.NoError(t, err)
	defer f.Close()

	p := &DelimitedParser{}
	rows, err := p.Parse(f)
	require.NoError(t, err)
	require.Len(t, rows, 17)

	assert.Equal(t, "2025-01-01", rows[0].Date)
	assert.Equal(t, "ACME PAYROLL SALARY", rows[0].Merchant)
	assert.Equal(t, "2500.00", rows[0].Amount.StringFixed(2))
	assert.Equal(t, ConfidenceClean, rows[0].ParseConfidence)

	assert.Equal(t, "Spotify", rows[1].Merchant)
	assert.True(t, rows[1].Amount.IsNegative())
}

func TestDelimitedParser_HeaderOnly(t *testing.T) {
	p := &DelimitedParser{}
	rows, err := p.Parse(strings.NewReader("date,description,amount\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDelimitedParser_EmptyInput(t *testing.T) {
	p := &DelimitedParser{}
	rows, err := p.Parse(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDelimitedParser_DegradesMalformedRows(t *testing.T) {
	in := "date, description, amount\n" +
		"2025-01-03, Tesco, -32.40\n" +
		"not a date, Tesco, -30.10\n" +
		"2025-01-05, , -5.00\n" +
		"2025-01-06, Corner Shop, twelve\n" +
		"2025-01-07\n"

	p := &DelimitedParser{}
	rows, err := p.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 5, "malformed rows are kept, not dropped")

	assert.Equal(t, ConfidenceClean, rows[0].ParseConfidence)

	// Unparseable date falls back to the raw text but keeps confidence.
	assert.Equal(t, "not a date", rows[1].Date)
	assert.Equal(t, ConfidenceClean, rows[1].ParseConfidence)

	assert.Equal(t, ConfidenceDegraded, rows[2].ParseConfidence, "empty merchant")
	assert.Equal(t, ConfidenceDegraded, rows[3].ParseConfidence, "bad amount")
	assert.True(t, rows[3].Amount.IsZero())
	assert.Equal(t, ConfidenceDegraded, rows[4].ParseConfidence, "short record")
}

func TestDelimitedParser_ColumnsByName(t *testing.T) {
	in := "Amount;Merchant;Date\n-4,50;Bakery;03/01/2025\n"
	p := &DelimitedParser{}
	rows, err := p.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bakery", rows[0].Merchant)
	assert.Equal(t, "2025-03-01", rows[0].Date)
	assert.Equal(t, "-4.50", rows[0].Amount.StringFixed(2))
}

func TestDelimitedParser_UnbalancedQuoteKeepsLaterRows(t *testing.T) {
	in := "date,description,amount\n" +
		"2024-01-01,\"Tesco,-5\n" +
		"2024-01-02,Spotify,-9.99\n" +
		"2024-01-03,Netflix,-12.99\n"

	p := &DelimitedParser{}
	rows, err := p.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "2024-01-01", rows[0].Date)
	assert.Equal(t, "Tesco", rows[0].Merchant)
	assert.Equal(t, ConfidenceDegraded, rows[0].ParseConfidence)

	assert.Equal(t, "Spotify", rows[1].Merchant)
	assert.Equal(t, "-9.99", rows[1].Amount.StringFixed(2))
	assert.Equal(t, ConfidenceClean, rows[1].ParseConfidence)
	assert.Equal(t, "Netflix", rows[2].Merchant)
	assert.Equal(t, ConfidenceClean, rows[2].ParseConfidence)
}

func TestDelimitedParser_QuotedFields(t *testing.T) {
	in := "date,description,amount\r\n" +
		"2024-01-01,\"Joe's Diner, Main St\",\"-1,204.50\"\r\n" +
		"\r\n" +
		"2024-01-02,Spotify,-9.99\r\n"

	p := &DelimitedParser{}
	rows, err := p.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Joe's Diner, Main St", rows[0].Merchant)
	assert.Equal(t, "-1204.50", rows[0].Amount.StringFixed(2))
	assert.Equal(t, ConfidenceClean, rows[0].ParseConfidence)
}

func TestDelimitedParser_SemicolonDecimalComma(t *testing.T) {
	in := "date;description;amount\n" +
		"2024-01-01;Tesco;-12,50\n" +
		"2024-01-02;Rent;-1.250,00\n" +
		"2024-01-03;Refund;3,5\n"

	p := &DelimitedParser{}
	rows, err := p.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "-12.50", rows[0].Amount.StringFixed(2))
	assert.Equal(t, ConfidenceClean, rows[0].ParseConfidence)
	assert.Equal(t, "-1250.00", rows[1].Amount.StringFixed(2))
	assert.Equal(t, "3.50", rows[2].Amount.StringFixed(2))
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-01-03", "2025-01-03"},
		{"2025/01/03", "2025-01-03"},
		{"01/03/2025", "2025-01-03"},
		{"1/3/2025", "2025-01-03"},
		{"03 Jan 2025", "2025-01-03"},
		{"Jan 3, 2025", "2025-01-03"},
		{" someday ", "someday"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDate(tt.in), "NormalizeDate(%q)", tt.in)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"-32.40", "-32.40", true},
		{"$1,234.50", "1234.50", true},
		{"(12.00)", "-12.00", true},
		{"£ 7.85", "7.85", true},
		{"-12,50", "-12.50", true},
		{"€1.234,56", "1234.56", true},
		{"1,234", "1234.00", true},
		{"1,234,567.89", "1234567.89", true},
		{"", "0.00", false},
		{"abc", "0.00", false},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseAmount(%q)", tt.in)
		assert.Equal(t, tt.want, got.StringFixed(2), "ParseAmount(%q)", tt.in)
	}
}

func TestParseAmount_DecimalComma(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"-12,50", "-12.50", true},
		{"-12,5", "-12.50", true},
		{"1.234,50", "1234.50", true},
		{"(7,85)", "-7.85", true},
		{"1,234.50", "1234.50", true},
		{"1,2,3", "123.00", true},
		{"", "0.00", false},
	}
	for _, tt := range tests {
		got, ok := parseAmount(tt.in, true)
		assert.Equal(t, tt.wantOK, ok, "parseAmount(%q, true)", tt.in)
		assert.Equal(t, tt.want, got.StringFixed(2), "parseAmount(%q, true)", tt.in)
	}
}

func TestChaseParser_Parse(t *testing.T) {
	data, err := os.ReadFile("../../testdata/chase_checking.csv")
	require.NoError(t, err)

	p := &ChaseParser{}
	rows, err := p.Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Len(t, rows, 6)

	// First: GITHUB subscription
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", rows[0].Merchant)
	assert.Equal(t, "-4.00", rows[0].Amount.StringFixed(2))
	assert.Equal(t, "2025-01-03", rows[0].Date)

	// Fourth: ACME income (positive)
	assert.Equal(t, "ACME CONSULTING INVOICE 1042", rows[3].Merchant)
	assert.True(t, rows[3].Amount.IsPositive())
	assert.Equal(t, "3500.00", rows[3].Amount.StringFixed(2))

	assert.Equal(t, "2025-01-22", rows[5].Date)
}

func TestChaseParser_UnbalancedQuoteKeepsLaterRows(t *testing.T) {
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n" +
		"DEBIT,01/03/2025,\"GITHUB *PRO,-4.00,ACH_DEBIT,10496.00,\n" +
		"DEBIT,01/22/2025,NETFLIX.COM,-15.49,ACH_DEBIT,13792.43,\n"
	p := &ChaseParser{}
	rows, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ConfidenceDegraded, rows[0].ParseConfidence)
	assert.Equal(t, "2025-01-03", rows[0].Date)
	assert.Equal(t, "NETFLIX.COM", rows[1].Merchant)
	assert.Equal(t, ConfidenceClean, rows[1].ParseConfidence)
}

func TestChaseParser_EmptyFile(t *testing.T) {
	p := &ChaseParser{}
	rows, err := p.Parse(strings.NewReader("Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"))
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestChaseParser_BadValuesDegrade(t *testing.T) {
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n" +
		"DEBIT,NOTADATE,desc,NOTANUMBER,ACH_DEBIT,100.00,\n"
	p := &ChaseParser{}
	rows, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "NOTADATE", rows[0].Date)
	assert.Equal(t, ConfidenceDegraded, rows[0].ParseConfidence)
}

const sampleOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250131120000
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>000111222
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250101
<DTEND>20250131
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250103
<TRNAMT>-9.99
<FITID>1001
<NAME>SPOTIFY USA
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250115
<TRNAMT>2500.00
<FITID>1002
<NAME>ACME PAYROLL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20250131
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func TestOFXParser_Parse(t *testing.T) {
	p := NewOFXParser()
	rows, err := p.Parse(strings.NewReader(sampleOFX))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "SPOTIFY USA", rows[0].Merchant)
	assert.Equal(t, "-9.99", rows[0].Amount.StringFixed(2))
	assert.Equal(t, "2025-01-03", rows[0].Date)
	assert.Equal(t, ConfidenceClean, rows[0].ParseConfidence)

	assert.True(t, rows[1].Amount.IsPositive())
}

func TestOFXParser_Empty(t *testing.T) {
	rows, err := NewOFXParser().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestPreprocessOFX(t *testing.T) {
	got := preprocessOFX("\n\n<SEVERITY>Info</SEVERITY>\n<CODE\n")
	assert.Equal(t, "<SEVERITY>INFO</SEVERITY>\n<CODE>\n", got)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))

	_, err := r.Lookup("nonexistent")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	assert.NotNil(t, r.Get("Chase"))
	assert.NotNil(t, r.Get("CHASE"))
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	assert.Panics(t, func() { r.Register(&ChaseParser{}) })
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"chase", "csv", "ofx"}, r.Formats())
}
