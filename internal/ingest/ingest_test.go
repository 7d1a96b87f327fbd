package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const statementOFX = `OFXHEADER:100
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
<DTSERVER>20240315120000[0:GMT]
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
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-48.50
<FITID>2024011501
<NAME>POS PURCHASE JOES BAR
<MEMO>Team drinks
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>300.00
<FITID>2024012001
<NAME>Client refund
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeFile(t, "export.csv", "\ufeffAcme Corp\nExpense Report\nAs of 2024-01-31\nDate,Transaction Type,Name,Memo/Description,Amount\n"+
		"01/02/2024,Expense,Joe's Bar,Team dinner,\"$1,234.56\"\n"+
		",,,,\n"+
		"01/03/2024,Expense,Sweetgreen,Lunch\n")

	table, err := Read(context.Background(), path, Options{SkipRows: 3})
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Transaction Type", "Name", "Memo/Description", "Amount"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Joe's Bar", table.Value(table.Rows[0], "name"))
	assert.Equal(t, "$1,234.56", table.Value(table.Rows[0], " Amount "))
	assert.Equal(t, 5, table.Rows[0].Line)
	assert.Equal(t, 7, table.Rows[1].Line)
	assert.Equal(t, "", table.Value(table.Rows[1], "Amount"))
	assert.False(t, table.HasColumn("Split"))
}

func TestReadCSV_ColumnsOverrideHeader(t *testing.T) {
	path := writeFile(t, "export.csv", "a,b,c\n2024-01-02,Carbone,95.00\n")

	table, err := Read(context.Background(), path, Options{Columns: []string{"Date", "Name", "Amount"}})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Carbone", table.Value(table.Rows[0], "Name"))
	assert.Equal(t, "95.00", table.Value(table.Rows[0], "Amount"))
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Company 1"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"Date", "Transaction Type", "Name", "Amount"}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]any{"2024-01-02", "Expense", "Costco", "210.40"}))
	require.NoError(t, f.SetSheetRow(sheet, "A6", &[]any{"2024-01-05", "Bill", "ConEd", "88.00"}))

	path := filepath.Join(t.TempDir(), "Company 1.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := Read(context.Background(), path, Options{SkipRows: 3})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Costco", table.Value(table.Rows[0], "Name"))
	assert.Equal(t, "Bill", table.Value(table.Rows[1], "Transaction Type"))

	_, err = Read(context.Background(), path, Options{Sheet: "Missing"})
	assert.ErrorIs(t, err, common.ErrUnreadableInput)
}

func TestReadOFX(t *testing.T) {
	path := writeFile(t, "statement.qfx", "\n\n"+statementOFX)

	table, err := Read(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	debit := table.Rows[0]
	assert.Equal(t, "2024-01-15", table.Value(debit, ColumnDate))
	assert.Equal(t, TypeExpense, table.Value(debit, ColumnType))
	assert.Equal(t, "JOES BAR", table.Value(debit, ColumnName))
	assert.Equal(t, "Team drinks", table.Value(debit, ColumnDescription))
	assert.Equal(t, "-48.50", table.Value(debit, ColumnAmount))
	assert.Equal(t, "1234567890", table.Value(debit, ColumnAccount))

	assert.Equal(t, TypeDeposit, table.Value(table.Rows[1], ColumnType))
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(context.Background(), filepath.Join(t.TempDir(), "absent.xlsx"), Options{})
	assert.ErrorIs(t, err, common.ErrMissingInput)

	_, err = Read(context.Background(), writeFile(t, "notes.txt", "hello"), Options{})
	assert.ErrorIs(t, err, common.ErrUnreadableInput)

	_, err = Read(context.Background(), writeFile(t, "short.csv", "only\n"), Options{SkipRows: 3})
	assert.ErrorIs(t, err, common.ErrUnreadableInput)
}

func TestPreprocessOFX(t *testing.T) {
	in := "\n  <SEVERITY>Warn</SEVERITY>\n<BANKTRANLIST\n"
	assert.Equal(t, "<SEVERITY>WARN</SEVERITY>\n<BANKTRANLIST>\n", preprocessOFX(in))
}
