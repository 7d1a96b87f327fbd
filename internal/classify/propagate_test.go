package classify

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/model"
)

func TestPropagate(t *testing.T) {
	results := []model.ClassificationResult{
		{VendorKey: "joes bar", VendorName: "Joe's Bar", Tier: model.Tier0},
		{VendorKey: "luigis", VendorName: "Luigi's", Tier: model.Tier50},
		{VendorKey: "unknown vendor 3", VendorName: "Unknown Vendor", Tier: model.Tier100},
	}
	transactions := []model.RawTransaction{
		{ExpenseID: 3, Vendor: "", Description: "Team offsite", Amount: decimal.RequireFromString("200.00")},
		{ExpenseID: 1, Vendor: "JOES BAR", Amount: decimal.RequireFromString("40.00")},
		{ExpenseID: 2, Vendor: "Luigi's", Amount: decimal.RequireFromString("33.33")},
	}

	expenses, err := Propagate(results, transactions)
	require.NoError(t, err)
	require.Len(t, expenses, 3)

	assert.Equal(t, 1, expenses[0].ExpenseID)
	assert.Equal(t, "Joe's Bar", expenses[0].Vendor)
	assert.True(t, expenses[0].DeductibleAmount.IsZero())

	assert.Equal(t, model.Tier50, expenses[1].Tier)
	assert.Equal(t, "16.67", expenses[1].DeductibleAmount.StringFixed(2))

	assert.Equal(t, "unknown vendor 3", expenses[2].VendorKey)
	assert.Equal(t, "200.00", expenses[2].DeductibleAmount.StringFixed(2))

	_, err = Propagate(results[:1], transactions)
	assert.ErrorIs(t, err, common.ErrClassificationFailed)
}

func TestPartitions(t *testing.T) {
	parts := Partitions([]model.ClassificationResult{
		{VendorKey: "a", VendorName: "A", Tier: model.Tier50},
		{VendorKey: "b", VendorName: "B", Tier: model.Tier0},
		{VendorKey: "c", VendorName: "C", Tier: model.Tier50},
	})

	assert.Equal(t, []string{"B"}, parts[model.Tier0])
	assert.Equal(t, []string{"A", "C"}, parts[model.Tier50])
	assert.NotNil(t, parts[model.Tier100])
	assert.Empty(t, parts[model.Tier100])
}

func TestPromptBuilder(t *testing.T) {
	pb, err := NewPromptBuilder(3)
	require.NoError(t, err)

	t.Run("includes vendor context and contract", func(t *testing.T) {
		prompt, err := pb.Build(model.VendorRecord{
			Name:         "Blank Street",
			Location:     "New York, NY",
			Descriptions: []string{"latte", "cold brew", "muffin", "bagel"},
		})
		require.NoError(t, err)

		assert.Contains(t, prompt, "Vendor: Blank Street")
		assert.Contains(t, prompt, "Location: New York, NY")
		assert.Contains(t, prompt, `Research "Blank Street New York"`)
		assert.Contains(t, prompt, "latte; cold brew; muffin")
		assert.NotContains(t, prompt, "bagel")
		assert.Contains(t, prompt, `"deduction_rate": 0.0 | 0.5 | 1.0`)
		assert.Contains(t, prompt, "CRITICAL RULES")
	})

	t.Run("empty details", func(t *testing.T) {
		prompt, err := pb.Build(model.VendorRecord{Name: "Unknown Vendor"})
		require.NoError(t, err)
		assert.Contains(t, prompt, "Transaction details: None provided")
		assert.Contains(t, prompt, "Location: Unknown")
		assert.True(t, strings.HasPrefix(prompt, "Classify this vendor"))
	})
}
