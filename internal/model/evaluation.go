package model

import "github.com/shopspring/decimal"

// EvaluationEntry is one hand-curated vendor with a trusted tier.
type EvaluationEntry struct {
	Vendor string `json:"vendor"`
	Key    string `json:"key"`
	Tier   Tier   `json:"tier"`
}

// EvaluationSet is the persisted ground truth shared by all companies.
type EvaluationSet struct {
	Entries []EvaluationEntry `json:"vendors"`
}

// Mismatch is a known vendor whose predicted tier differs from the trusted one.
type Mismatch struct {
	Vendor     string     `json:"vendor"`
	Rationale  string     `json:"reason"`
	Provenance Provenance `json:"provenance"`
	Predicted  Tier       `json:"predicted_tier"`
	Expected   Tier       `json:"expected_tier"`
}

// UnmatchedEntry is an evaluation vendor the classifier never saw.
type UnmatchedEntry struct {
	Vendor  string `json:"vendor"`
	Closest string `json:"closest_match,omitempty"`
	Tier    Tier   `json:"tier"`
}

// TierSummary aggregates one tier's vendors and expenses.
type TierSummary struct {
	Expenses     decimal.Decimal `json:"expenses"`
	Deductions   decimal.Decimal `json:"deductions"`
	Tier         Tier            `json:"tier"`
	Transactions int             `json:"transactions"`
	Vendors      int             `json:"vendors"`
}

// Totals aggregates every tier.
type Totals struct {
	Expenses     decimal.Decimal `json:"expenses"`
	Deductions   decimal.Decimal `json:"deductions"`
	Transactions int             `json:"transactions"`
	Vendors      int             `json:"vendors"`
}

// EvaluationResult is the accuracy part of a summary.
type EvaluationResult struct {
	Mismatches []Mismatch       `json:"mismatches"`
	Unmatched  []UnmatchedEntry `json:"unmatched"`
	Accuracy   float64          `json:"accuracy"`
	Known      int              `json:"known_vendors"`
	Correct    int              `json:"correct"`
}

// SummaryReport is the final, company-scoped report.
type SummaryReport struct {
	Evaluation  *EvaluationResult `json:"evaluation,omitempty"`
	Company     string            `json:"company"`
	Tiers       []TierSummary     `json:"tiers"`
	Total       Totals            `json:"total"`
	SkippedRows int               `json:"skipped_rows"`
	NeedsReview int               `json:"needs_review"`
}
