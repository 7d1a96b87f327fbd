package cli

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-deduct/internal/model"
)

func testReport() model.SummaryReport {
	return model.SummaryReport{
		Company: "Acme",
		Tiers: []model.TierSummary{
			{Tier: model.Tier0, Transactions: 2, Vendors: 1, Expenses: decimal.RequireFromString("40"), Deductions: decimal.Zero},
			{Tier: model.Tier50, Transactions: 1, Vendors: 1, Expenses: decimal.RequireFromString("1234.5"), Deductions: decimal.RequireFromString("617.25")},
			{Tier: model.Tier100, Expenses: decimal.Zero, Deductions: decimal.Zero},
		},
		Total: model.Totals{
			Transactions: 3,
			Vendors:      2,
			Expenses:     decimal.RequireFromString("1274.5"),
			Deductions:   decimal.RequireFromString("617.25"),
		},
		NeedsReview: 1,
		SkippedRows: 2,
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(testReport())

	assert.Contains(t, out, "Acme deductions")
	assert.Contains(t, out, "deductible: 50%")
	assert.Contains(t, out, "$1,274.50")
	assert.Contains(t, out, "$617.25")
	assert.Contains(t, out, "Vendors needing review: 1")
	assert.Contains(t, out, "Rows skipped: 2")
	assert.NotContains(t, out, "Accuracy")
}

func TestRenderSummary_Evaluation(t *testing.T) {
	report := testReport()
	mismatches := make([]model.Mismatch, 0, maxMismatchesShown+2)
	for i := range maxMismatchesShown + 2 {
		mismatches = append(mismatches, model.Mismatch{
			Vendor:     fmt.Sprintf("vendor %02d", i),
			Expected:   model.Tier50,
			Predicted:  model.Tier0,
			Provenance: model.ProvenanceModel,
		})
	}
	report.Evaluation = &model.EvaluationResult{
		Accuracy:   0.875,
		Known:      8,
		Correct:    7,
		Mismatches: mismatches,
		Unmatched: []model.UnmatchedEntry{
			{Vendor: "Soho House", Closest: "soho house nyc"},
			{Vendor: "Nowhere Diner"},
		},
	}

	out := RenderSummary(report)

	assert.Contains(t, out, "Accuracy: 87.5% (7 of 8 known vendors)")
	assert.Contains(t, out, "12 mismatches")
	assert.Contains(t, out, "vendor 00: expected 50%, got 0% (model)")
	assert.NotContains(t, out, "vendor 11")
	assert.Contains(t, out, "2 more in mismatches.csv")
	assert.Contains(t, out, "2 evaluation vendors not seen")
	assert.Contains(t, out, "Soho House (closest: soho house nyc)")
	assert.NotContains(t, out, "Nowhere Diner (closest")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, testReport()))
	assert.Contains(t, buf.String(), "total")
}

func TestRenderTable(t *testing.T) {
	assert.Empty(t, renderTable(nil))

	out := renderTable([][]string{{"Group", "N"}, {"a", "10"}})
	assert.Contains(t, out, "Group")
	assert.Contains(t, out, "10")
}

func TestProgress(t *testing.T) {
	var buf syncBuffer
	p := NewProgress(&buf, false)

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(done int) {
			defer wg.Done()
			p.Update(done, 5)
		}(i)
	}
	wg.Wait()

	assert.Contains(t, buf.String(), "Classifying vendors")
	assert.EqualValues(t, 5, p.bar.State().CurrentNum)
}

func TestProgress_Quiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, true)
	p.Update(1, 5)
	assert.Empty(t, buf.String())
	assert.Nil(t, p.bar)
}
