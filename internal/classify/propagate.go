package classify

import (
	"fmt"
	"sort"

	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/model"
	"github.com/Veraticus/spice-deduct/internal/prepare"
)

// Propagate carries each vendor's tier to its transactions. Every
// transaction must belong to a classified vendor.
func Propagate(results []model.ClassificationResult, transactions []model.RawTransaction) ([]model.ClassifiedExpense, error) {
	byKey := make(map[string]model.ClassificationResult, len(results))
	for _, r := range results {
		byKey[r.VendorKey] = r
	}

	expenses := make([]model.ClassifiedExpense, 0, len(transactions))
	for _, tx := range transactions {
		key := prepare.VendorKey(tx)
		result, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("%w: expense %d has no classified vendor %q",
				common.ErrClassificationFailed, tx.ExpenseID, key)
		}

		expenses = append(expenses, model.ClassifiedExpense{
			ExpenseID:        tx.ExpenseID,
			Date:             tx.Date,
			VendorKey:        key,
			Vendor:           result.VendorName,
			Description:      tx.Description,
			Amount:           tx.Amount,
			Tier:             result.Tier,
			DeductibleAmount: tx.Amount.Mul(result.Tier.Rate()).Round(2),
		})
	}

	sort.Slice(expenses, func(i, j int) bool {
		return expenses[i].ExpenseID < expenses[j].ExpenseID
	})
	return expenses, nil
}

// Partitions groups vendor names by tier. Every tier is present, possibly
// empty, and names keep the key order of results.
func Partitions(results []model.ClassificationResult) map[model.Tier][]string {
	partitions := make(map[model.Tier][]string, len(model.Tiers))
	for _, tier := range model.Tiers {
		partitions[tier] = []string{}
	}
	for _, r := range results {
		partitions[r.Tier] = append(partitions[r.Tier], r.VendorName)
	}
	return partitions
}
