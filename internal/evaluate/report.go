package evaluate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-deduct/internal/model"
)

// SummaryHeader is the first row of final_summary.csv.
var SummaryHeader = []string{"Group", "Transactions", "Unique Vendors", "Total Expenses", "Total Deductions"}

// MismatchHeader is the first row of mismatches.csv.
var MismatchHeader = []string{"Vendor", "Expected Tier", "Predicted Tier", "Provenance", "Reason"}

// SummaryRecords renders the per-tier summary and totals as CSV records.
func SummaryRecords(report model.SummaryReport) [][]string {
	records := [][]string{SummaryHeader}
	for _, ts := range report.Tiers {
		records = append(records, []string{
			"deductible: " + ts.Tier.String(),
			strconv.Itoa(ts.Transactions),
			strconv.Itoa(ts.Vendors),
			FormatMoney(ts.Expenses),
			FormatMoney(ts.Deductions),
		})
	}
	return append(records, []string{
		"total",
		strconv.Itoa(report.Total.Transactions),
		strconv.Itoa(report.Total.Vendors),
		FormatMoney(report.Total.Expenses),
		FormatMoney(report.Total.Deductions),
	})
}

// MismatchRecords renders mismatches as CSV records. A report without an
// evaluation yields only the header.
func MismatchRecords(report model.SummaryReport) [][]string {
	records := [][]string{MismatchHeader}
	if report.Evaluation == nil {
		return records
	}
	for _, m := range report.Evaluation.Mismatches {
		records = append(records, []string{
			m.Vendor,
			m.Expected.String(),
			m.Predicted.String(),
			string(m.Provenance),
			m.Rationale,
		})
	}
	return records
}

// FormatMoney renders d as dollars with thousands separators, e.g. $1,234.56.
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%s", sign, b.String(), frac)
}

// FormatAccuracy renders an accuracy ratio as a percentage, e.g. 87.5%.
func FormatAccuracy(accuracy float64) string {
	return strconv.FormatFloat(accuracy*100, 'f', 1, 64) + "%"
}
