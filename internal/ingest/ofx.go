package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
)

// Column names of tables synthesized from OFX statements. They match the
// accounting package's export headers so OFX input needs no field mapping.
const (
	ColumnDate        = "Date"
	ColumnType        = "Transaction Type"
	ColumnNum         = "Num"
	ColumnName        = "Name"
	ColumnDescription = "Memo/Description"
	ColumnAccount     = "Split"
	ColumnAmount      = "Amount"
)

// OFX transaction types mapped onto the export's type column.
const (
	TypeExpense = "Expense"
	TypeDeposit = "Deposit"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocessOFX fixes common formatting issues in bank-issued OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML-style files sometimes drop the closing bracket of bare tags
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// ReadOFX converts bank and credit card statements into a table. Debits
// become Expense rows with positive amounts; credits become Deposit rows.
func ReadOFX(ctx context.Context, path string) (*Table, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var rows []Row
	add := func(list *ofxgo.TransactionList, account string) {
		if list == nil {
			return
		}
		for _, tx := range list.Transactions {
			rows = append(rows, Row{Cells: ofxCells(tx, account), Line: len(rows) + 1})
		}
	}

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(stmt.BankTranList, string(stmt.BankAcctFrom.AcctID))
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(stmt.BankTranList, string(stmt.CCAcctFrom.AcctID))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Debug("Parsed OFX file", "path", path, "transactions", len(rows))

	header := []string{ColumnDate, ColumnType, ColumnNum, ColumnName, ColumnDescription, ColumnAccount, ColumnAmount}
	return NewTable(header, rows), nil
}

func ofxCells(tx ofxgo.Transaction, account string) []string {
	amount := tx.TrnAmt.FloatString(2)
	kind := TypeExpense
	if tx.TrnAmt.Sign() > 0 {
		kind = TypeDeposit
	}

	return []string{
		tx.DtPosted.Format("2006-01-02"),
		kind,
		string(tx.CheckNum),
		merchantName(tx),
		strings.TrimSpace(string(tx.Memo)),
		account,
		amount,
	}
}

var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// merchantName prefers PAYEE, then NAME stripped of card-network noise.
func merchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// "MM/DD " posting dates
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}
