package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		input   string
		want    Tier
		wantErr bool
	}{
		{input: "0", want: Tier0},
		{input: "50", want: Tier50},
		{input: "100", want: Tier100},
		{input: "0.0", want: Tier0},
		{input: "0.5", want: Tier50},
		{input: "1.0", want: Tier100},
		{input: "50%", want: Tier50},
		{input: " 100 % ", want: Tier100},
		{input: "meals", want: Tier50},
		{input: "Entertainment", want: Tier0},
		{input: "employee-events", want: Tier100},
		{input: "75", wantErr: true},
		{input: "0.5%", wantErr: true},
		{input: "fifty", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTier(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTier)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTier_JSON(t *testing.T) {
	data, err := json.Marshal(Tier50)
	require.NoError(t, err)
	assert.Equal(t, "50", string(data))

	_, err = json.Marshal(Tier(30))
	require.Error(t, err)

	var decoded struct {
		A Tier `json:"a"`
		B Tier `json:"b"`
		C Tier `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 0.5, "b": "100", "c": 0}`), &decoded))
	assert.Equal(t, Tier50, decoded.A)
	assert.Equal(t, Tier100, decoded.B)
	assert.Equal(t, Tier0, decoded.C)

	require.Error(t, json.Unmarshal([]byte(`{"a": 0.25}`), &decoded))
}

func TestTier_Rate(t *testing.T) {
	assert.Equal(t, "0", Tier0.Rate().String())
	assert.Equal(t, "0.5", Tier50.Rate().String())
	assert.Equal(t, "1", Tier100.Rate().String())
}

func TestProvenance_NeedsReview(t *testing.T) {
	assert.False(t, ProvenanceModel.NeedsReview())
	assert.True(t, ProvenanceModelUncertain.NeedsReview())
	assert.True(t, ProvenanceFallback.NeedsReview())
	assert.False(t, ProvenanceOverrideTeamMeal.NeedsReview())
	assert.True(t, ProvenanceOverrideRetailer.IsOverride())
	assert.False(t, ProvenanceFallback.IsOverride())
}
