// Package ofx reads OFX/QFX bank and credit card statements into expense rows.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/Veraticus/spice-insights/internal/model"
)

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags on their own line that lost their closing bracket.
	unclosedTagPattern = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser converts statements into expenses.
type Parser struct {
	// DefaultCurrency is used when a statement has no CURDEF.
	DefaultCurrency string
}

// NewParser creates a parser.
func NewParser(defaultCurrency string) *Parser {
	return &Parser{DefaultCurrency: defaultCurrency}
}

// Result is the outcome of parsing one file.
type Result struct {
	Expenses []model.Expense
	// Credits counts incoming transactions, which are not expenses.
	Credits int
}

func normalize(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTagPattern.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in r. Debits become
// expenses with a positive amount.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(normalize(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	result := &Result{}
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			p.collect(result, stmt.BankTranList.Transactions, p.currency(fmt.Sprint(stmt.CurDef)))
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			p.collect(result, stmt.BankTranList.Transactions, p.currency(fmt.Sprint(stmt.CurDef)))
		}
	}

	slog.InfoContext(ctx, "Parsed OFX file",
		"expenses", len(result.Expenses),
		"credits_skipped", result.Credits)
	return result, nil
}

func (p *Parser) currency(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, "XXX") {
		return p.DefaultCurrency
	}
	return code
}

func (p *Parser) collect(result *Result, txns []ofxgo.Transaction, currency string) {
	for _, tx := range txns {
		amount, _ := tx.TrnAmt.Float64()
		if amount >= 0 {
			result.Credits++
			continue
		}
		result.Expenses = append(result.Expenses, model.Expense{
			Date:         tx.DtPosted.Time,
			Amount:       -amount,
			CurrencyCode: currency,
			Description:  merchantName(tx),
		})
	}
}

var purchasePrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

var genericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// merchantName prefers PAYEE, falls back to NAME and then MEMO when NAME is
// generic, and strips card-network prefixes and a leading MM/DD.
func merchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && genericNames[strings.ToUpper(name)] {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range purchasePrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}
