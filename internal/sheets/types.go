package sheets

import (
	"strconv"

	"github.com/Veraticus/spice-deduct/internal/evaluate"
	"github.com/Veraticus/spice-deduct/internal/model"
)

// Export is one company's results as written to the spreadsheet.
type Export struct {
	Report   model.SummaryReport
	Vendors  []model.ClassificationResult
	Expenses []model.ClassifiedExpense
}

// Tab is one sheet of the spreadsheet. Rows are written starting at A1.
type Tab struct {
	Title string
	Rows  [][]any
	// MoneyColumns are zero-based columns formatted as currency.
	MoneyColumns []int
}

// Tab title suffixes. Each company gets its own set of tabs.
const (
	SummarySuffix  = "Summary"
	VendorsSuffix  = "Vendors"
	ExpensesSuffix = "Expenses"
)

// BuildTabs lays out the summary, vendor, and expense tabs for export.
// Money is written as plain numbers so the sheet can format and sum them.
func BuildTabs(export Export) []Tab {
	company := export.Report.Company
	return []Tab{
		summaryTab(company, export.Report),
		vendorsTab(company, export.Vendors),
		expensesTab(company, export.Expenses),
	}
}

func summaryTab(company string, report model.SummaryReport) Tab {
	rows := [][]any{
		{company + " Deductions"},
		{},
		{"Group", "Transactions", "Unique Vendors", "Total Expenses", "Total Deductions"},
	}
	for _, ts := range report.Tiers {
		rows = append(rows, []any{
			"deductible: " + ts.Tier.String(),
			ts.Transactions,
			ts.Vendors,
			ts.Expenses.InexactFloat64(),
			ts.Deductions.InexactFloat64(),
		})
	}
	rows = append(rows, []any{
		"total",
		report.Total.Transactions,
		report.Total.Vendors,
		report.Total.Expenses.InexactFloat64(),
		report.Total.Deductions.InexactFloat64(),
	})

	rows = append(rows,
		[]any{},
		[]any{"Needs Review", report.NeedsReview},
		[]any{"Skipped Rows", report.SkippedRows},
	)

	if ev := report.Evaluation; ev != nil {
		rows = append(rows,
			[]any{},
			[]any{"Accuracy", evaluate.FormatAccuracy(ev.Accuracy)},
			[]any{"Known Vendors", ev.Known},
			[]any{"Correct", ev.Correct},
		)
		if len(ev.Mismatches) > 0 {
			rows = append(rows, []any{}, []any{"Vendor", "Expected Tier", "Predicted Tier", "Provenance", "Reason"})
			for _, m := range ev.Mismatches {
				rows = append(rows, []any{m.Vendor, m.Expected.String(), m.Predicted.String(), string(m.Provenance), m.Rationale})
			}
		}
	}

	return Tab{Title: company + " " + SummarySuffix, Rows: rows, MoneyColumns: []int{3, 4}}
}

func vendorsTab(company string, vendors []model.ClassificationResult) Tab {
	rows := make([][]any, 0, len(vendors)+1)
	rows = append(rows, []any{"Vendor", "Tier", "Classification", "Business Type", "Provenance", "Needs Review", "Transactions", "Total Amount", "Reason"})
	for _, v := range vendors {
		rows = append(rows, []any{
			v.VendorName,
			v.Tier.String(),
			v.Label,
			v.BusinessType,
			string(v.Provenance),
			strconv.FormatBool(v.NeedsReview),
			v.TransactionCount,
			v.TotalAmount.InexactFloat64(),
			v.Rationale,
		})
	}
	return Tab{Title: company + " " + VendorsSuffix, Rows: rows, MoneyColumns: []int{7}}
}

func expensesTab(company string, expenses []model.ClassifiedExpense) Tab {
	rows := make([][]any, 0, len(expenses)+1)
	rows = append(rows, []any{"Expense ID", "Date", "Vendor", "Description", "Tier", "Amount", "Deductible Amount"})
	for _, x := range expenses {
		rows = append(rows, []any{
			x.ExpenseID,
			x.Date,
			x.Vendor,
			x.Description,
			x.Tier.String(),
			x.Amount.InexactFloat64(),
			x.DeductibleAmount.InexactFloat64(),
		})
	}
	return Tab{Title: company + " " + ExpensesSuffix, Rows: rows, MoneyColumns: []int{5, 6}}
}
