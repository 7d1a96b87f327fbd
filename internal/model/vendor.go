package model

import "github.com/shopspring/decimal"

// VendorRecord aggregates every transaction that normalizes to the same key.
type VendorRecord struct {
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Key              string          `json:"key"`
	Name             string          `json:"name"`
	Location         string          `json:"location"`
	Descriptions     []string        `json:"descriptions"`
	ExpenseIDs       []int           `json:"expense_ids"`
	TransactionCount int             `json:"transaction_count"`
	TeamMeal         bool            `json:"team_meal"`
}

// PreparedVendors is the artifact handed from preparation to classification.
type PreparedVendors struct {
	Company      string         `json:"company"`
	Location     string         `json:"location"`
	Vendors      []VendorRecord `json:"vendors"`
	TotalRows    int            `json:"total_rows"`
	SkippedRows  int            `json:"skipped_rows"`
	FilteredRows int            `json:"filtered_rows"`
}
