package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spice-deduct/internal/evaluate"
	"github.com/Veraticus/spice-deduct/internal/model"
)

// maxMismatchesShown bounds the mismatch list printed to the terminal. The
// full list is always in mismatches.csv.
const maxMismatchesShown = 10

// RenderSummary lays out a company's summary report: the tier table,
// the review count, and accuracy when the report carries an evaluation.
func RenderSummary(report model.SummaryReport) string {
	sections := []string{FormatTitle(report.Company + " deductions"), renderTable(evaluate.SummaryRecords(report))}

	facts := []string{fmt.Sprintf("Vendors needing review: %d", report.NeedsReview)}
	if report.SkippedRows > 0 {
		facts = append(facts, fmt.Sprintf("Rows skipped: %d", report.SkippedRows))
	}
	sections = append(sections, SubtleStyle.Render(strings.Join(facts, "\n")))

	if ev := report.Evaluation; ev != nil {
		sections = append(sections, renderEvaluation(ev))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// PrintSummary writes RenderSummary(report) to w.
func PrintSummary(w io.Writer, report model.SummaryReport) error {
	_, err := fmt.Fprintln(w, RenderSummary(report))
	return err
}

func renderEvaluation(ev *model.EvaluationResult) string {
	accuracy := fmt.Sprintf("Accuracy: %s (%d of %d known vendors)", evaluate.FormatAccuracy(ev.Accuracy), ev.Correct, ev.Known)

	lines := []string{"", accuracy}
	if ev.Known > 0 && ev.Correct == ev.Known {
		lines[1] = FormatSuccess(accuracy)
	}

	if len(ev.Mismatches) > 0 {
		lines = append(lines, "", FormatWarning(fmt.Sprintf("%d mismatches", len(ev.Mismatches))))
		for i, m := range ev.Mismatches {
			if i == maxMismatchesShown {
				lines = append(lines, SubtleStyle.Render(fmt.Sprintf("  … %d more in mismatches.csv", len(ev.Mismatches)-i)))
				break
			}
			lines = append(lines, fmt.Sprintf("  %s: expected %s, got %s (%s)", m.Vendor, m.Expected, m.Predicted, m.Provenance))
		}
	}

	if len(ev.Unmatched) > 0 {
		lines = append(lines, "", FormatInfo(fmt.Sprintf("%d evaluation vendors not seen", len(ev.Unmatched))))
		for _, u := range ev.Unmatched {
			if u.Closest != "" {
				lines = append(lines, fmt.Sprintf("  %s (closest: %s)", u.Vendor, u.Closest))
			}
		}
	}

	return strings.Join(lines, "\n")
}

// renderTable aligns records into columns. The first record is the header.
func renderTable(records [][]string) string {
	if len(records) == 0 {
		return ""
	}

	widths := make([]int, len(records[0]))
	for _, rec := range records {
		for i, cell := range rec {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	rows := make([]string, 0, len(records))
	for r, rec := range records {
		cells := make([]string, len(rec))
		for i, cell := range rec {
			style := TableCellStyle.Width(widths[i] + 2)
			if i > 0 {
				style = style.Align(lipgloss.Right)
			}
			cells[i] = style.Render(cell)
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top, cells...)
		if r == 0 {
			row = TableHeaderStyle.Render(row)
		}
		rows = append(rows, row)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
