package classification

import (
	"testing"

	"github.com/Veraticus/spice-deduct/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := NewRules(Config{
		KnownBars: []string{"bar", "club", "Soho House", "Dead Rabbit"},
		Retailers: []Retailer{
			{Pattern: "Costco", Tier: model.Tier50},
			{Pattern: "Sam's Club", Tier: model.Tier50},
			{Pattern: "Costco Business Center", Tier: model.Tier100},
		},
	})
	require.NoError(t, err)
	return rules
}

func vendor(key string, teamMeal bool) model.VendorRecord {
	return model.VendorRecord{Key: key, Name: key, TeamMeal: teamMeal}
}

func TestRules_Apply(t *testing.T) {
	rules := testRules(t)

	tests := []struct {
		name      string
		vendor    model.VendorRecord
		wantTier  model.Tier
		wantProv  model.Provenance
		wantRule  string
		wantMatch bool
	}{
		{
			name:      "team meal outranks everything",
			vendor:    vendor("joes bar", true),
			wantMatch: true,
			wantTier:  model.Tier100,
			wantProv:  model.ProvenanceOverrideTeamMeal,
			wantRule:  "team_meal",
		},
		{
			name:      "retailer forced tier",
			vendor:    vendor("costco wholesale", false),
			wantMatch: true,
			wantTier:  model.Tier50,
			wantProv:  model.ProvenanceOverrideRetailer,
			wantRule:  "retailer:costco",
		},
		{
			name:      "retailer outranks bar",
			vendor:    vendor("sams club 4410", false),
			wantMatch: true,
			wantTier:  model.Tier50,
			wantProv:  model.ProvenanceOverrideRetailer,
			wantRule:  "retailer:sams club",
		},
		{
			name:      "longer retailer phrase wins",
			vendor:    vendor("costco business center", false),
			wantMatch: true,
			wantTier:  model.Tier100,
			wantRule:  "retailer:costco business center",
			wantProv:  model.ProvenanceOverrideRetailer,
		},
		{
			name:      "known bar",
			vendor:    vendor("the dead rabbit", false),
			wantMatch: true,
			wantTier:  model.Tier0,
			wantProv:  model.ProvenanceOverrideKnownBar,
			wantRule:  "known_bar:dead rabbit",
		},
		{
			name:   "substring of a word does not match",
			vendor: vendor("barnes noble", false),
		},
		{
			name:   "no rule",
			vendor: vendor("sweetgreen", false),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := rules.Apply(tt.vendor)
			assert.Equal(t, tt.wantMatch, ok)
			if !tt.wantMatch {
				return
			}
			assert.Equal(t, tt.wantTier, got.Tier)
			assert.Equal(t, tt.wantProv, got.Provenance)
			assert.Equal(t, tt.wantRule, got.Rule)
		})
	}
}

func TestRules_MatchesNameWithoutKey(t *testing.T) {
	rules := testRules(t)

	got, ok := rules.Apply(model.VendorRecord{Name: "SOHO HOUSE NY"})
	require.True(t, ok)
	assert.Equal(t, model.ProvenanceOverrideKnownBar, got.Provenance)
}

func TestNewRules_Errors(t *testing.T) {
	_, err := NewRules(Config{Retailers: []Retailer{{Pattern: "Costco", Tier: model.Tier(75)}}})
	assert.ErrorIs(t, err, model.ErrInvalidTier)

	_, err = NewRules(Config{KnownBars: []string{"!!!"}})
	assert.ErrorContains(t, err, "empty after normalization")

	rules, err := NewRules(Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, rules.Count())
}
