// Package model defines the core domain models used throughout the application.
package model

import "github.com/shopspring/decimal"

// Provenance records where a final tier came from and how far it can be
// trusted. It is the only confidence signal carried on a result.
type Provenance string

// Provenance values.
const (
	ProvenanceModel            Provenance = "model"
	ProvenanceModelUncertain   Provenance = "model_uncertain"
	ProvenanceOverrideTeamMeal Provenance = "override_team_meal"
	ProvenanceOverrideRetailer Provenance = "override_retailer"
	ProvenanceOverrideKnownBar Provenance = "override_known_bar"
	ProvenanceFallback         Provenance = "fallback"
)

// NeedsReview reports whether a human should look at the result.
func (p Provenance) NeedsReview() bool {
	return p == ProvenanceModelUncertain || p == ProvenanceFallback
}

// IsOverride reports whether a deterministic rule decided the tier.
func (p Provenance) IsOverride() bool {
	switch p {
	case ProvenanceOverrideTeamMeal, ProvenanceOverrideRetailer, ProvenanceOverrideKnownBar:
		return true
	}
	return false
}

// ClassificationResult is the final decision for one vendor.
type ClassificationResult struct {
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ModelTier        *Tier           `json:"model_tier,omitempty"`
	VendorKey        string          `json:"vendor_key"`
	VendorName       string          `json:"vendor_name"`
	Label            string          `json:"classification"`
	BusinessType     string          `json:"business_type"`
	Rationale        string          `json:"reason"`
	Provenance       Provenance      `json:"provenance"`
	Rule             string          `json:"rule,omitempty"`
	Tier             Tier            `json:"tier"`
	Attempts         int             `json:"attempts"`
	TransactionCount int             `json:"transaction_count"`
	NeedsReview      bool            `json:"needs_review"`
}

// ClassifiedExpense carries a vendor's tier down to a single transaction.
type ClassifiedExpense struct {
	Amount           decimal.Decimal `json:"amount"`
	DeductibleAmount decimal.Decimal `json:"deductible_amount"`
	Date             string          `json:"date"`
	VendorKey        string          `json:"vendor_key"`
	Vendor           string          `json:"vendor"`
	Description      string          `json:"description"`
	ExpenseID        int             `json:"expense_id"`
	Tier             Tier            `json:"tier"`
}

// ClassifiedVendors is the per-vendor classification artifact.
type ClassifiedVendors struct {
	Company     string                 `json:"company"`
	Vendors     []ClassificationResult `json:"vendors"`
	SkippedRows int                    `json:"skipped_rows"`
}
