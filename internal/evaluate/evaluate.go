// Package evaluate measures classification accuracy against the evaluation
// set and summarizes deductions per tier.
package evaluate

import (
	"log/slog"
	"sort"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-deduct/internal/model"
)

// Stage is the pipeline stage name used in errors.
const Stage = "evaluate"

// ClosestMatchThreshold is the minimum similarity for an unmatched
// evaluation vendor to be paired with a classified vendor as a hint.
const ClosestMatchThreshold = 0.8

// Input is everything the evaluator reads. It is never modified.
type Input struct {
	// EvalSet is nil when evaluation is disabled for the company.
	EvalSet  *model.EvaluationSet
	Vendors  model.ClassifiedVendors
	Expenses []model.ClassifiedExpense
}

// Evaluator builds summary reports.
type Evaluator struct {
	logger *slog.Logger
}

// New creates an Evaluator.
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// Evaluate produces the company's summary report.
func (e *Evaluator) Evaluate(in Input) model.SummaryReport {
	report := Summarize(in.Vendors, in.Expenses)

	if in.EvalSet == nil {
		e.logger.Info("Evaluation disabled, summary only", "company", in.Vendors.Company)
		return report
	}

	result := Compare(in.Vendors.Vendors, *in.EvalSet)
	report.Evaluation = &result

	e.logger.Info("Evaluation complete",
		"company", in.Vendors.Company,
		"known_vendors", result.Known,
		"correct", result.Correct,
		"accuracy", result.Accuracy,
		"mismatches", len(result.Mismatches),
		"unmatched", len(result.Unmatched))
	return report
}

// Compare joins results with the evaluation set on the normalized vendor
// key. Vendors missing from either side never count toward accuracy.
func Compare(results []model.ClassificationResult, set model.EvaluationSet) model.EvaluationResult {
	byKey := make(map[string]model.ClassificationResult, len(results))
	keys := make([]string, 0, len(results))
	for _, r := range results {
		byKey[r.VendorKey] = r
		keys = append(keys, r.VendorKey)
	}
	sort.Strings(keys)

	entries := append([]model.EvaluationEntry(nil), set.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	out := model.EvaluationResult{
		Mismatches: []model.Mismatch{},
		Unmatched:  []model.UnmatchedEntry{},
	}

	for _, entry := range entries {
		result, ok := byKey[entry.Key]
		if !ok {
			out.Unmatched = append(out.Unmatched, model.UnmatchedEntry{
				Vendor:  entry.Vendor,
				Tier:    entry.Tier,
				Closest: closest(entry.Key, keys),
			})
			continue
		}

		out.Known++
		if result.Tier == entry.Tier {
			out.Correct++
			continue
		}
		out.Mismatches = append(out.Mismatches, model.Mismatch{
			Vendor:     result.VendorName,
			Expected:   entry.Tier,
			Predicted:  result.Tier,
			Provenance: result.Provenance,
			Rationale:  result.Rationale,
		})
	}

	if out.Known > 0 {
		out.Accuracy = float64(out.Correct) / float64(out.Known)
	}
	return out
}

// Summarize aggregates tiers and totals. Every tier is listed, including
// empty ones.
func Summarize(vendors model.ClassifiedVendors, expenses []model.ClassifiedExpense) model.SummaryReport {
	index := make(map[model.Tier]int, len(model.Tiers))
	tiers := make([]model.TierSummary, len(model.Tiers))
	for i, tier := range model.Tiers {
		index[tier] = i
		tiers[i] = model.TierSummary{Tier: tier, Expenses: decimal.Zero, Deductions: decimal.Zero}
	}

	report := model.SummaryReport{
		Company:     vendors.Company,
		SkippedRows: vendors.SkippedRows,
		Total:       model.Totals{Expenses: decimal.Zero, Deductions: decimal.Zero},
	}

	for _, v := range vendors.Vendors {
		tiers[index[v.Tier]].Vendors++
		if v.NeedsReview {
			report.NeedsReview++
		}
	}
	for _, x := range expenses {
		ts := &tiers[index[x.Tier]]
		ts.Transactions++
		ts.Expenses = ts.Expenses.Add(x.Amount)
		ts.Deductions = ts.Deductions.Add(x.DeductibleAmount)
	}

	for _, ts := range tiers {
		report.Total.Transactions += ts.Transactions
		report.Total.Expenses = report.Total.Expenses.Add(ts.Expenses)
		report.Total.Deductions = report.Total.Deductions.Add(ts.Deductions)
	}
	report.Total.Vendors = len(vendors.Vendors)
	report.Tiers = tiers
	return report
}

// closest returns the most similar key at or above the threshold. Ties go
// to the lexically smaller key.
func closest(target string, keys []string) string {
	best, bestScore := "", 0.0
	for _, key := range keys {
		score := similarity(target, key)
		if score >= ClosestMatchThreshold && score > bestScore {
			best, bestScore = key, score
		}
	}
	return best
}

func similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
