package importer

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spendwise/internal/model"
)

var (
	severityRe = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagRe  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// OFXParser parses OFX/QFX bank and credit card statements.
type OFXParser struct{}

// NewOFXParser creates an OFX parser.
func NewOFXParser() *OFXParser { return &OFXParser{} }

// Format returns the parser name.
func (p *OFXParser) Format() string { return "ofx" }

// Parse reads an OFX document and returns rows from every statement in file order.
func (p *OFXParser) Parse(r io.Reader) ([]model.TransactionRow, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading OFX: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return nil, nil
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("parsing OFX: %w", err)
	}

	var rows []model.TransactionRow
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			rows = appendOFX(rows, stmt.BankTranList.Transactions)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			rows = appendOFX(rows, stmt.BankTranList.Transactions)
		}
	}
	return rows, nil
}

func appendOFX(rows []model.TransactionRow, txns []ofxgo.Transaction) []model.TransactionRow {
	for _, tx := range txns {
		merchant := ofxMerchant(tx)
		amount, err := decimal.NewFromString(tx.TrnAmt.FloatString(2))

		conf := ConfidenceClean
		if err != nil || merchant == "" {
			conf = ConfidenceDegraded
			amount = decimal.Zero
		}

		date := ""
		if !tx.DtPosted.IsZero() {
			date = tx.DtPosted.Format(model.DateFormat)
		}

		rows = append(rows, model.TransactionRow{
			Date:            date,
			Merchant:        merchant,
			Amount:          amount,
			ParseConfidence: conf,
		})
	}
	return rows
}

// ofxMerchant prefers PAYEE, then NAME, then MEMO.
func ofxMerchant(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}
	if name := strings.TrimSpace(string(tx.Name)); name != "" {
		return name
	}
	return strings.TrimSpace(string(tx.Memo))
}

// preprocessOFX fixes common formatting issues in bank-issued OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRe.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagRe.ReplaceAllString(content, "$1>")
}
