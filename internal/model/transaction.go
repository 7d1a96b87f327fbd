package model

import "github.com/shopspring/decimal"

// RawTransaction is one row of source expense data. It is read once and
// discarded after vendor aggregation.
type RawTransaction struct {
	Amount      decimal.Decimal `json:"amount"`
	Company     string          `json:"company"`
	Date        string          `json:"date"`
	Type        string          `json:"transaction_type,omitempty"`
	Num         string          `json:"num,omitempty"`
	Vendor      string          `json:"vendor"`
	Description string          `json:"description"`
	Account     string          `json:"account,omitempty"`
	ExpenseID   int             `json:"expense_id"`
}
